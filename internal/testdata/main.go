// Package testdata holds small charts for parser and end to end tests.
package testdata

import (
	"os"
	"path/filepath"
)

// StepMania has one 4k chart at 120 bpm starting at 0.5s, plus a chart type
// that is not supported.
const StepMania = `#TITLE:Test;
#ARTIST:Nobody;
#OFFSET:-0.5;
#BPMS:0.000=120.000;
#NOTES:
     dance-single:
     someone:
     Hard:
     9:
     0.1,0.2,0.3,0.4,0.5:
1000
0100
2010
0000
,
3001
0000
0000
0000
;
#NOTES:
     pump-single:
     someone:
     Easy:
     2:
     0,0,0,0,0:
10000
00000
00000
00000
;
`

// Lines has two lines. The first turns a quarter circle over two seconds.
const Lines = `{
  "name": "Lines",
  "level": "3",
  "lines": [
    {
      "keyframes": [
        {"time": 0, "x": 0, "y": 0, "rotation": 0},
        {"time": 2, "x": 0, "y": 0, "rotation": 90}
      ],
      "notes": [
        {"kind": "tap", "time": 1, "x": 0},
        {"kind": "hold", "time": 1.5, "end": 2.5, "x": 1}
      ]
    },
    {
      "notes": [
        {"kind": "flick", "time": 1, "x": -1, "speed": 2},
        {"kind": "drag", "time": 3, "x": 0}
      ]
    }
  ]
}`

// Write stores content as name in dir and returns the path.
func Write(dir, name, content string) (string, error) {
	p := filepath.Join(dir, name)
	return p, os.WriteFile(p, []byte(content), 0o644)
}
