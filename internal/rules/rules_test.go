package rules

import (
	"strings"
	"testing"
)

func play(t *testing.T, pos Position, moves ...string) Position {
	t.Helper()
	for _, mv := range moves {
		act := Action{From: mv[:2], To: mv[2:4]}
		if len(mv) > 4 {
			act.Promotion = mv[4:]
		}
		res := Apply(pos, act)
		if !res.OK {
			t.Fatalf("move %s rejected: reason=%s err=%v", mv, res.Reason, res.Err)
		}
		pos = res.Position
	}
	return pos
}

func TestApply_AlternatesSides(t *testing.T) {
	pos := Start()
	if pos.Turn() != White {
		t.Fatalf("start turn = %s, want w", pos.Turn())
	}
	pos = play(t, pos, "e2e4")
	if pos.Turn() != Black {
		t.Fatalf("turn after e2e4 = %s, want b", pos.Turn())
	}
	if !strings.HasPrefix(pos.FEN(), "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b") {
		t.Fatalf("unexpected fen %q", pos.FEN())
	}
	pos = play(t, pos, "e7e5")
	if pos.Turn() != White || pos.MoveCount() != 2 {
		t.Fatalf("turn=%s count=%d", pos.Turn(), pos.MoveCount())
	}
	if got := pos.MovesSAN(); len(got) != 2 || got[0] != "e4" || got[1] != "e5" {
		t.Fatalf("san history = %v", got)
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	start := Start()
	before := start.FEN()
	_ = play(t, start, "d2d4")
	if start.FEN() != before || start.MoveCount() != 0 {
		t.Fatalf("input position mutated: %q", start.FEN())
	}
}

func TestApply_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		setup  []string
		act    Action
		reason Reason
	}{
		{"own piece on target", nil, Action{From: "e1", To: "e2"}, ReasonIllegal},
		{"blocked double step", []string{"b1c3", "e7e5"}, Action{From: "c2", To: "c4"}, ReasonIllegal},
		{"opponent piece", nil, Action{From: "e7", To: "e5"}, ReasonIllegal},
		{"empty square", nil, Action{From: "e4", To: "e5"}, ReasonIllegal},
		{"off board", nil, Action{From: "e9", To: "e4"}, ReasonMalformed},
		{"garbage", nil, Action{From: "", To: "zz"}, ReasonMalformed},
		{"same square", nil, Action{From: "e2", To: "e2"}, ReasonMalformed},
		{"bad promotion piece", nil, Action{From: "e2", To: "e4", Promotion: "k"}, ReasonMalformed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pos := play(t, Start(), tc.setup...)
			before := pos.FEN()
			res := Apply(pos, tc.act)
			if res.OK {
				t.Fatalf("expected rejection for %s", tc.act)
			}
			if res.Reason != tc.reason {
				t.Fatalf("reason = %s, want %s (err=%v)", res.Reason, tc.reason, res.Err)
			}
			if pos.FEN() != before {
				t.Fatalf("position changed after rejection")
			}
		})
	}
}

func TestApply_Promotion(t *testing.T) {
	pos, err := FromFEN("8/P6k/8/8/8/8/8/K7 w - - 0 1")
	if err != nil {
		t.Fatalf("FromFEN: %v", err)
	}
	if res := Apply(pos, Action{From: "a7", To: "a8"}); res.OK || res.Reason != ReasonMalformed {
		t.Fatalf("expected malformed without promotion, got ok=%v reason=%s", res.OK, res.Reason)
	}
	res := Apply(pos, Action{From: "a7", To: "a8", Promotion: "Q"})
	if !res.OK {
		t.Fatalf("promotion rejected: %v", res.Err)
	}
	if res.UCI != "a7a8q" || !strings.HasPrefix(res.Position.FEN(), "Q7/") {
		t.Fatalf("uci=%s fen=%s", res.UCI, res.Position.FEN())
	}
}

func TestApply_PromotionIgnoredOnNormalMove(t *testing.T) {
	res := Apply(Start(), Action{From: "e2", To: "e4", Promotion: "q"})
	if !res.OK || res.UCI != "e2e4" {
		t.Fatalf("ok=%v uci=%s err=%v", res.OK, res.UCI, res.Err)
	}
}

func TestEvaluate_Checkmate(t *testing.T) {
	pos := play(t, Start(), "f2f3", "e7e5", "g2g4", "d8h4")
	term := Evaluate(pos)
	if !term.Checkmate || term.Stalemate || term.Draw {
		t.Fatalf("terminal = %+v, want checkmate only", term)
	}
	if pos.Turn() != White {
		t.Fatalf("mated side should be to move")
	}
	if res := Apply(pos, Action{From: "a2", To: "a3"}); res.OK || res.Reason != ReasonFinished {
		t.Fatalf("move after mate: ok=%v reason=%s", res.OK, res.Reason)
	}
}

func TestEvaluate_Stalemate(t *testing.T) {
	pos, err := FromFEN("k7/8/8/1Q6/8/8/8/7K w - - 0 1")
	if err != nil {
		t.Fatalf("FromFEN: %v", err)
	}
	pos = play(t, pos, "b5b6")
	term := Evaluate(pos)
	if !term.Stalemate || term.Checkmate || term.Draw {
		t.Fatalf("terminal = %+v, want stalemate only", term)
	}
}

func TestEvaluate_InsufficientMaterial(t *testing.T) {
	pos, err := FromFEN("7k/8/8/8/8/8/1r6/K7 w - - 0 1")
	if err != nil {
		t.Fatalf("FromFEN: %v", err)
	}
	pos = play(t, pos, "a1b2")
	if term := Evaluate(pos); !term.Draw || term.Checkmate || term.Stalemate {
		t.Fatalf("terminal = %+v, want draw", term)
	}
}

func TestEvaluate_ThreefoldRepetition(t *testing.T) {
	shuffle := []string{"g1f3", "g8f6", "f3g1", "f6g8"}
	pos := play(t, Start(), shuffle...)
	if Evaluate(pos).Over() {
		t.Fatalf("two occurrences must not end the game")
	}
	pos = play(t, pos, shuffle...)
	term := Evaluate(pos)
	if !term.Draw {
		t.Fatalf("terminal = %+v, want threefold draw", term)
	}
}

func TestEvaluate_OngoingGame(t *testing.T) {
	if Evaluate(Start()).Over() {
		t.Fatalf("start position reported terminal")
	}
	var zero Position
	if zero.FEN() != Start().FEN() {
		t.Fatalf("zero position should behave as start")
	}
}

func TestEngine_RoundTrip(t *testing.T) {
	eng := New()
	pos := play(t, Start(), "e2e4", "c7c5")
	fen := eng.Serialize(pos)
	back, err := eng.Deserialize(fen)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if back.FEN() != fen || eng.SideToMove(back) != White {
		t.Fatalf("round trip mismatch: %q vs %q", back.FEN(), fen)
	}
	if _, err := eng.Deserialize("not a fen"); err == nil {
		t.Fatalf("expected error for invalid fen")
	}
}
