package main

import "testing"

func lookupFrom(values map[string]string) envLookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func TestResolveGenesisPathPrecedence(t *testing.T) {
	cases := []struct {
		name    string
		cli     string
		env     map[string]string
		cfg     string
		allow   bool
		want    string
		wantErr bool
	}{
		{name: "cli wins", cli: "cli.json", env: map[string]string{genesisPathEnv: "env.json"}, cfg: "cfg.json", want: "cli.json"},
		{name: "env beats config", env: map[string]string{genesisPathEnv: "env.json"}, cfg: "cfg.json", want: "env.json"},
		{name: "config fallback", cfg: "cfg.json", want: "cfg.json"},
		{name: "autogenesis allows empty", allow: true, want: ""},
		{name: "nothing configured", wantErr: true},
		{name: "blank env ignored", env: map[string]string{genesisPathEnv: "   "}, cfg: "cfg.json", want: "cfg.json"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := resolveGenesisPath(tc.cli, tc.cfg, tc.allow, lookupFrom(tc.env))
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestResolveAllowAutogenesis(t *testing.T) {
	allow, err := resolveAllowAutogenesis(false, false, false, lookupFrom(map[string]string{allowAutogenesisEnv: "true"}))
	if err != nil || !allow {
		t.Fatalf("env override failed: allow=%v err=%v", allow, err)
	}

	allow, err = resolveAllowAutogenesis(true, true, false, lookupFrom(nil))
	if err != nil || allow {
		t.Fatalf("cli flag should win: allow=%v err=%v", allow, err)
	}

	if _, err := resolveAllowAutogenesis(false, false, false, lookupFrom(map[string]string{allowAutogenesisEnv: "banana"})); err == nil {
		t.Fatal("expected parse error")
	}
}
