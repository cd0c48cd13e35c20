package trends

import "testing"

func TestParseTrendResponse_PlainJSON(t *testing.T) {
	raw := `[{"topic":"AI agents","score":0.8,"rationale":"lots of coverage","supporting_item_ids":["a","b"]}]`
	got, err := parseTrendResponse(raw)
	if err != nil {
		t.Fatalf("parseTrendResponse: %v", err)
	}
	if len(got) != 1 || got[0].Topic != "AI agents" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestParseTrendResponse_StripsCodeFence(t *testing.T) {
	raw := "```json\n[{\"topic\":\"x\",\"score\":0.5,\"supporting_item_ids\":[]}]\n```"
	got, err := parseTrendResponse(raw)
	if err != nil {
		t.Fatalf("parseTrendResponse: %v", err)
	}
	if len(got) != 1 || got[0].Topic != "x" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestParseTrendResponse_ExtractsArrayFromSurroundingProse(t *testing.T) {
	raw := "Here are the trends:\n[{\"topic\":\"y\",\"score\":0.9,\"supporting_item_ids\":[\"z\"]}]\nHope that helps!"
	got, err := parseTrendResponse(raw)
	if err != nil {
		t.Fatalf("parseTrendResponse: %v", err)
	}
	if len(got) != 1 || got[0].Topic != "y" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestParseTrendResponse_NoArrayIsError(t *testing.T) {
	if _, err := parseTrendResponse("I could not find any trends."); err == nil {
		t.Fatalf("expected an error for a response with no JSON array")
	}
}
