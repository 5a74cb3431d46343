package agentio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/palagent/palagent/pkg/llmutils"
)

var logger = xlog.NewPackageLogger("github.com/palagent/palagent", "agentio")

// playerCommands are tried in order to find a WAV player on the host.
var playerCommands = []string{"aplay", "afplay", "paplay", "ffplay"}

// PiperConfig describes a Piper text-to-speech HTTP server.
type PiperConfig struct {
	// ModelPath is the path to the Piper voice model.
	ModelPath string `json:"model_path" yaml:"model_path"`
	// Host the server binds to. Defaults to 127.0.0.1.
	Host string `json:"host,omitempty" yaml:"host,omitempty"`
	// Port the server binds to. Defaults to 5000.
	Port int `json:"port,omitempty" yaml:"port,omitempty"`
	// Command launches the server. Defaults to
	// "python -m piper.http_server".
	Command []string `json:"command,omitempty" yaml:"command,omitempty"`
	// StartTimeout bounds the wait for the server to come up.
	// Defaults to 10 seconds.
	StartTimeout time.Duration `json:"start_timeout,omitempty" yaml:"start_timeout,omitempty"`
}

// PiperTTS speaks text through a Piper HTTP server, launching it on first
// use when it is not already serving.
type PiperTTS struct {
	cfg     PiperConfig
	baseURL string
	client  *http.Client
	player  string

	mu  sync.Mutex
	cmd *exec.Cmd
}

var _ Speaker = (*PiperTTS)(nil)

// PiperOption configures a PiperTTS.
type PiperOption func(*PiperTTS)

// WithBaseURL overrides the server URL, disabling subprocess launch.
func WithBaseURL(url string) PiperOption {
	return func(p *PiperTTS) {
		p.baseURL = url
		p.cfg.Command = nil
	}
}

// WithPlayer overrides the playback command.
func WithPlayer(player string) PiperOption {
	return func(p *PiperTTS) {
		p.player = player
	}
}

// NewPiperTTS creates a speaker for the given configuration.
func NewPiperTTS(cfg PiperConfig, opts ...PiperOption) (*PiperTTS, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 5000
	}
	if cfg.StartTimeout == 0 {
		cfg.StartTimeout = 10 * time.Second
	}
	if len(cfg.Command) == 0 {
		cfg.Command = []string{"python", "-m", "piper.http_server"}
	}

	p := &PiperTTS{
		cfg:     cfg,
		baseURL: fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port),
		client:  &http.Client{Timeout: time.Minute},
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.player == "" {
		player, err := findPlayer()
		if err != nil {
			return nil, err
		}
		p.player = player
	}
	return p, nil
}

func findPlayer() (string, error) {
	for _, name := range playerCommands {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", errors.New("no WAV player found on PATH")
}

// Speak implements Speaker. The server is started lazily on first use.
func (p *PiperTTS) Speak(ctx context.Context, text string) error {
	if err := p.ensureStarted(ctx); err != nil {
		return err
	}

	body := llmutils.ToJSON(map[string]string{"text": text})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader([]byte(body)))
	if err != nil {
		return errors.Wrap(err, "failed to create synthesis request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "synthesis request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Newf("synthesis failed with status %d", resp.StatusCode)
	}

	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read synthesized audio")
	}
	return p.play(ctx, wav)
}

func (p *PiperTTS) play(ctx context.Context, wav []byte) error {
	tmp, err := os.CreateTemp("", "palagent-*.wav")
	if err != nil {
		return errors.Wrap(err, "failed to create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(wav); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "failed to write audio")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close audio file")
	}

	cmd := exec.CommandContext(ctx, p.player, tmp.Name())
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "playback failed: %s", p.player)
	}
	return nil
}

// ensureStarted launches the Piper server unless one already responds.
func (p *PiperTTS) ensureStarted(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd != nil || p.responds(ctx) {
		return nil
	}
	if len(p.cfg.Command) == 0 {
		return errors.Newf("TTS server not responding at %s", p.baseURL)
	}

	args := append(p.cfg.Command[1:],
		"--host", p.cfg.Host,
		"--port", strconv.Itoa(p.cfg.Port),
		"--model", p.cfg.ModelPath,
	)
	cmd := exec.Command(p.cfg.Command[0], args...)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return errors.Wrap(err, "failed to launch TTS server")
	}

	logger.KV(xlog.DEBUG, "status", "tts_launched", "pid", cmd.Process.Pid)

	deadline := time.Now().Add(p.cfg.StartTimeout)
	for time.Now().Before(deadline) {
		if p.responds(ctx) {
			p.cmd = cmd
			return nil
		}
		if cmd.ProcessState != nil {
			break
		}
		time.Sleep(200 * time.Millisecond)
	}

	_ = cmd.Process.Kill()
	_ = cmd.Wait()
	return errors.Newf("TTS server not ready after %v", p.cfg.StartTimeout)
}

// responds reports whether any HTTP response comes back from the base URL.
func (p *PiperTTS) responds(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return true
}

// Close implements Speaker. It stops the server if this process started it.
func (p *PiperTTS) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd == nil {
		return nil
	}
	_ = p.cmd.Process.Kill()
	err := p.cmd.Wait()
	p.cmd = nil
	if err != nil {
		logger.KV(xlog.DEBUG, "status", "tts_stopped", "err", err.Error())
	}
	return nil
}
