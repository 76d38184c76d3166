package parser

import (
	"fmt"
	"path/filepath"
	"strings"

	"git.lost.host/meutraa/judgeline/internal/game"
)

// Parser turns a chart file into one chart per difficulty. Every chart is
// judged with the given windows.
type Parser interface {
	Parse(file string, windows game.Windows) ([]*game.Chart, error)
}

// ForFile picks a parser by file extension.
func ForFile(file string) (Parser, error) {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".sm":
		return &StepParser{}, nil
	case ".json":
		return &JSONParser{}, nil
	}
	return nil, fmt.Errorf("no parser for %v", file)
}

// Extensions lists the chart formats ForFile knows.
var Extensions = []string{".sm", ".json"}
