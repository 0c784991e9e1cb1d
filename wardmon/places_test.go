package wardmon

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/pkg/errors"
	"pgregory.net/rapid"
)

func TestParseProcessSpec(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		spec, err := ParseProcessSpec([]byte(`{"args": ["/bin/cat", "-"], "future": true}`))
		if err != nil {
			t.Fatal("failed to parse:", err)
		}

		if expect := []string{"/bin/cat", "-"}; !reflect.DeepEqual(spec.Args, expect) {
			t.Fatalf("unexpected args, got %v, expected %v", spec.Args, expect)
		}
		if spec.Env != nil || spec.UID != nil || spec.GID != nil {
			t.Fatalf("absent fields decoded as set: %#v", spec)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		for _, data := range []string{`{]`, `{}`, `{"args": []}`} {
			if _, err := ParseProcessSpec([]byte(data)); !errors.Is(err, ErrInvalidSpec) {
				t.Errorf("unexpected error for %q: %v", data, err)
			}
		}
	})
}

func TestParseControlMessage(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		msg, err := ParseControlMessage([]byte(`{"type": "RESTART", "name": "hello"}`))
		if err != nil {
			t.Fatal("failed to parse:", err)
		}
		if msg.Type != MessageRestart || msg.Name != "hello" {
			t.Fatalf("unexpected message: %#v", msg)
		}

		msg, err = ParseControlMessage([]byte(`{"type": "RESTART-ALL", "future": 1}`))
		if err != nil {
			t.Fatal("failed to parse:", err)
		}
		if msg.Type != MessageRestartAll {
			t.Fatalf("unexpected message: %#v", msg)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		for _, data := range []string{
			`gibberish`,
			`{"type": "LALALA"}`,
			`{"type": "RESTART"}`, // no target
			`{}`,
		} {
			if _, err := ParseControlMessage([]byte(data)); !errors.Is(err, ErrUnknownMessage) {
				t.Errorf("unexpected error for %q: %v", data, err)
			}
		}
	})
}

// TestProcessSpecEncoding checks the field presence rules of the encoded spec:
// args always, env only when non-empty, uid and gid only when set. Files
// written by the control writer and files written by hand must mean the same
// thing, so absence has to stay distinguishable from zero.
func TestProcessSpecEncoding(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		spec := ProcessSpec{
			Args: rapid.SliceOfN(rapid.StringMatching(`[a-z/]{1,12}`), 1, 4).Draw(t, "args"),
			Env: rapid.MapOf(
				rapid.StringMatching(`[A-Z_]{1,8}`),
				rapid.StringMatching(`[a-z0-9]{0,8}`),
			).Draw(t, "env"),
		}
		if rapid.Bool().Draw(t, "hasUID") {
			uid := rapid.IntRange(0, 65535).Draw(t, "uid")
			spec.UID = &uid
		}
		if rapid.Bool().Draw(t, "hasGID") {
			gid := rapid.IntRange(0, 65535).Draw(t, "gid")
			spec.GID = &gid
		}

		data, err := json.Marshal(spec)
		if err != nil {
			t.Fatal("failed to marshal:", err)
		}

		var raw map[string]json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			t.Fatal("failed to unmarshal raw:", err)
		}

		expectKeys := map[string]bool{"args": true}
		if len(spec.Env) > 0 {
			expectKeys["env"] = true
		}
		if spec.UID != nil {
			expectKeys["uid"] = true
		}
		if spec.GID != nil {
			expectKeys["gid"] = true
		}

		for key := range expectKeys {
			if _, ok := raw[key]; !ok {
				t.Fatalf("key %q missing from %s", key, data)
			}
		}
		for key := range raw {
			if !expectKeys[key] {
				t.Fatalf("stray key %q in %s", key, data)
			}
		}

		parsed, err := ParseProcessSpec(data)
		if err != nil {
			t.Fatal("failed to parse back:", err)
		}

		expect := spec
		if len(expect.Env) == 0 {
			expect.Env = nil
		}
		if !reflect.DeepEqual(*parsed, expect) {
			t.Fatalf("spec did not round-trip, got %#v, expected %#v", *parsed, expect)
		}
	})
}
