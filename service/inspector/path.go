package inspector

import (
	"strconv"

	"github.com/viant/parsly"
	"github.com/viant/parsly/matcher"
)

// Segment addresses one navigation step in a variable path such as
// "users[1].name": either a property name or an element index.
type Segment struct {
	Name    string
	Index   int
	IsIndex bool
}

const (
	identifierCode = iota + 1
	dotCode
	openBracketCode
	closeBracketCode
	indexCode
)

var (
	identifierToken   = parsly.NewToken(identifierCode, "Identifier", &identifierMatcher{})
	dotToken          = parsly.NewToken(dotCode, ".", matcher.NewByte('.'))
	openBracketToken  = parsly.NewToken(openBracketCode, "[", matcher.NewByte('['))
	closeBracketToken = parsly.NewToken(closeBracketCode, "]", matcher.NewByte(']'))
	indexToken        = parsly.NewToken(indexCode, "Index", &digitsMatcher{})
)

// ParsePath parses a dotted variable path with optional element indexing
// into its segments.
func ParsePath(input string) ([]Segment, error) {
	cursor := parsly.NewCursor("", []byte(input), 0)
	matched := cursor.MatchOne(identifierToken)
	if matched.Code != identifierToken.Code {
		return nil, cursor.NewError(identifierToken)
	}
	segments := []Segment{{Name: matched.Text(cursor)}}
	for cursor.Pos < cursor.InputSize {
		matched = cursor.MatchAny(dotToken, openBracketToken)
		switch matched.Code {
		case dotToken.Code:
			matched = cursor.MatchOne(identifierToken)
			if matched.Code != identifierToken.Code {
				return nil, cursor.NewError(identifierToken)
			}
			segments = append(segments, Segment{Name: matched.Text(cursor)})
		case openBracketToken.Code:
			matched = cursor.MatchOne(indexToken)
			if matched.Code != indexToken.Code {
				return nil, cursor.NewError(indexToken)
			}
			index, err := strconv.Atoi(matched.Text(cursor))
			if err != nil {
				return nil, err
			}
			matched = cursor.MatchOne(closeBracketToken)
			if matched.Code != closeBracketToken.Code {
				return nil, cursor.NewError(closeBracketToken)
			}
			segments = append(segments, Segment{Index: index, IsIndex: true})
		default:
			return nil, cursor.NewError(dotToken, openBracketToken)
		}
	}
	return segments, nil
}

type identifierMatcher struct{}

func (m *identifierMatcher) Match(cursor *parsly.Cursor) int {
	matched := 0
	for i := cursor.Pos; i < cursor.InputSize; i++ {
		c := cursor.Input[i]
		if isLetter(c) || c == '_' || c == '$' || (matched > 0 && isDigit(c)) {
			matched++
			continue
		}
		break
	}
	return matched
}

type digitsMatcher struct{}

func (m *digitsMatcher) Match(cursor *parsly.Cursor) int {
	matched := 0
	for i := cursor.Pos; i < cursor.InputSize; i++ {
		if !isDigit(cursor.Input[i]) {
			break
		}
		matched++
	}
	return matched
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
