package boardclient

import (
	"fmt"
	"strings"

	"github.com/park285/Cheese-LiveBoard/pkg/boarddto"
)

// ParseUCI turns "e2e4" or "e7e8q" into a Move. Legality is left to the mirror.
func ParseUCI(s string) (boarddto.Move, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 4 && len(s) != 5 {
		return boarddto.Move{}, fmt.Errorf("bad move %q: want e2e4 or e7e8q", s)
	}
	if !isSquare(s[0:2]) || !isSquare(s[2:4]) {
		return boarddto.Move{}, fmt.Errorf("bad move %q: unknown square", s)
	}
	mv := boarddto.Move{From: s[0:2], To: s[2:4]}
	if len(s) == 5 {
		if !strings.ContainsRune("qrbn", rune(s[4])) {
			return boarddto.Move{}, fmt.Errorf("bad move %q: promotion must be q, r, b or n", s)
		}
		mv.Promotion = s[4:]
	}
	return mv, nil
}

func isSquare(sq string) bool {
	return len(sq) == 2 && sq[0] >= 'a' && sq[0] <= 'h' && sq[1] >= '1' && sq[1] <= '8'
}
