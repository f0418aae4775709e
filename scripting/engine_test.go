package scripting

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestOnTickSpawnRequests(t *testing.T) {
	dir := t.TempDir()
	script := `
function on_tick(ctx)
    if ctx.tick % 10 ~= 0 then
        return {}
    end
    return {
        { kind = "drone", x = 1.5, y = 2.5, count = 3 },
        { kind = "probe", x = 0, y = 0 },
    }
end
`
	if err := os.WriteFile(filepath.Join(dir, "spawner.lua"), []byte(script), 0o644); err != nil {
		t.Fatal(err)
	}

	e, err := NewEngine(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer e.Close()

	if got := e.OnTick(7, 100); got != nil {
		t.Errorf("OnTick(7) = %v, want none", got)
	}

	got := e.OnTick(10, 100)
	want := []SpawnRequest{
		{Kind: "drone", X: 1.5, Y: 2.5, Count: 3},
		{Kind: "probe", X: 0, Y: 0, Count: 1},
	}
	if len(got) != len(want) {
		t.Fatalf("OnTick(10) returned %d requests, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("request %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestMissingHookAndMissingDir(t *testing.T) {
	e, err := NewEngine(filepath.Join(t.TempDir(), "absent"), zap.NewNop())
	if err != nil {
		t.Fatalf("NewEngine on missing dir: %v", err)
	}
	defer e.Close()

	if got := e.OnTick(1, 0); got != nil {
		t.Errorf("OnTick without hook = %v, want nil", got)
	}
}
