package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/danmuck/packwire/internal/protocol"
	"github.com/danmuck/packwire/internal/protocol/session"
	"github.com/danmuck/packwire/internal/testutil/testlog"
	"github.com/danmuck/packwire/internal/testutil/wiretest"
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := newApp(&stdout, &stderr).Run(append([]string{"packwire"}, args...))
	return stdout.String(), stderr.String(), err
}

func TestSendPrintsEchoedRequest(t *testing.T) {
	testlog.Start(t)
	peer := wiretest.Listen(t, wiretest.Options{})

	out, _, err := run(t, "send", "--host", peer.Host, "--port", strconv.Itoa(peer.Port))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if out != "[42, \"Hello\", \"World!\"]\n" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestSendWarnsOnTrailingBytes(t *testing.T) {
	testlog.Start(t)
	raw, err := protocol.Marshal(protocol.NewString("Hi from server!"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	peer := wiretest.Listen(t, wiretest.Options{Respond: wiretest.Fixed(append(raw, 0x01))})

	out, errOut, err := run(t, "send", "--host", peer.Host, "--port", strconv.Itoa(peer.Port), "--format", "json")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !strings.Contains(out, `"value":"Hi from server!"`) || !strings.Contains(out, `"result":"extra_bytes"`) {
		t.Fatalf("unexpected output %q", out)
	}
	if !strings.Contains(errOut, "warning") {
		t.Fatalf("expected warning on stderr, got %q", errOut)
	}
}

func TestSendConnectFailure(t *testing.T) {
	testlog.Start(t)
	peer := wiretest.Listen(t, wiretest.Options{})
	port := peer.Port
	peer.Close()

	_, _, err := run(t, "send", "--host", "127.0.0.1", "--port", strconv.Itoa(port))
	if err == nil {
		t.Fatalf("expected connect failure")
	}
	if !strings.Contains(err.Error(), session.ErrConnect.Error()) {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "packwire.toml")

	out, _, err := run(t, "config", "init", "--output", path)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, path) {
		t.Fatalf("unexpected output %q", out)
	}
	if _, _, err := run(t, "config", "init", "--output", path); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}
	if _, _, err := run(t, "config", "validate", "--input", path); err != nil {
		t.Fatalf("config validate: %v", err)
	}

	if err := os.WriteFile(path, []byte("[peer]\nmode = \"shout\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, err := run(t, "config", "validate", "--input", path); err == nil {
		t.Fatalf("expected validation failure")
	}
}
