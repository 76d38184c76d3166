package game

type Difficulty struct {
	Name  string
	Level string
	Lanes uint8 // zero for free placed multi line charts
}

var NKeyMap = map[string]uint8{
	"dance-single": 4,
	"dance-solo":   6,
	"dance-double": 8,
}
