package classifier

import "testing"

func TestFirstJSONObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"bare object", `{"a":1}`, `{"a":1}`, true},
		{"prose prefix and suffix", `The answer is {"a":1}. Hope that helps!`, `{"a":1}`, true},
		{"nested braces", `x {"a":{"b":2}} y`, `{"a":{"b":2}}`, true},
		{"braces inside strings", `{"a":"}{"}`, `{"a":"}{"}`, true},
		{"escaped quote in string", `{"a":"say \"hi\" {now}"}`, `{"a":"say \"hi\" {now}"}`, true},
		{"no object", "nothing here", "", false},
		{"unbalanced", `{"a":1`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := firstJSONObject(tt.in)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeStrict(t *testing.T) {
	type shape struct {
		Result string `json:"result"`
		Reason string `json:"reason"`
	}

	t.Run("direct object", func(t *testing.T) {
		var v shape
		if err := decodeStrict(`{"result":"passed","reason":"ok"}`, &v); err != nil {
			t.Fatalf("decodeStrict: %v", err)
		}
		if v.Result != "passed" {
			t.Errorf("Result = %q", v.Result)
		}
	})

	t.Run("unknown keys rejected", func(t *testing.T) {
		var v shape
		if err := decodeStrict(`{"result":"passed","reason":"ok","confidence":0.9}`, &v); err == nil {
			t.Fatal("decodeStrict accepted unknown key")
		}
	})

	t.Run("code fence recovered", func(t *testing.T) {
		var v shape
		raw := "```json\n{\"result\":\"rejected\",\"reason\":\"no\"}\n```"
		if err := decodeStrict(raw, &v); err != nil {
			t.Fatalf("decodeStrict: %v", err)
		}
		if v.Result != "rejected" {
			t.Errorf("Result = %q", v.Result)
		}
	})

	t.Run("prose recovered", func(t *testing.T) {
		var v shape
		raw := `Here you go: {"result":"passed","reason":"fine"} — done.`
		if err := decodeStrict(raw, &v); err != nil {
			t.Fatalf("decodeStrict: %v", err)
		}
	})

	t.Run("garbage fails", func(t *testing.T) {
		var v shape
		if err := decodeStrict("no json at all", &v); err == nil {
			t.Fatal("decodeStrict accepted garbage")
		}
	})

	t.Run("two objects fails strict pass then recovers first", func(t *testing.T) {
		var v shape
		raw := `{"result":"passed","reason":"a"} {"result":"rejected","reason":"b"}`
		if err := decodeStrict(raw, &v); err != nil {
			t.Fatalf("decodeStrict: %v", err)
		}
		if v.Result != "passed" {
			t.Errorf("Result = %q, want first object", v.Result)
		}
	})
}
