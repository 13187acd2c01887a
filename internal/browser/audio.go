package browser

import (
	"fmt"
	"io"
	"os/exec"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

// Capturer reads raw compressed audio from the shared capture device.
type Capturer interface {
	Start() error
	Read(p []byte) (int, error)
	Stop()
}

// FFmpegCapturer shells out to ffmpeg and streams mp3 chunks from its
// stdout. One loopback device serves the whole machine, which is why
// capture is gated by the DeviceLock.
type FFmpegCapturer struct {
	format string // ffmpeg input format, e.g. "pulse" or "dshow"
	device string

	cmd    *exec.Cmd
	stdout io.ReadCloser
}

func NewFFmpegCapturer(format, device string) *FFmpegCapturer {
	return &FFmpegCapturer{format: format, device: device}
}

func (f *FFmpegCapturer) Start() error {
	if f.cmd != nil {
		return nil
	}

	input := f.device
	if f.format == "dshow" {
		input = "audio=" + f.device
	}
	cmd := exec.Command("ffmpeg",
		"-f", f.format,
		"-i", input,
		"-ac", "2",
		"-ar", "44100",
		"-b:a", "128k",
		"-f", "mp3",
		"-fflags", "+nobuffer",
		"-flags", "+low_delay",
		"-flush_packets", "1",
		"pipe:1",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}
	f.cmd = cmd
	f.stdout = stdout
	log.Info().Str("module", "browser.audio").Str("device", f.device).Msg("audio capture started")
	return nil
}

func (f *FFmpegCapturer) Read(p []byte) (int, error) {
	if f.stdout == nil {
		return 0, io.EOF
	}
	return f.stdout.Read(p)
}

// Stop terminates ffmpeg, escalating to SIGKILL when it lingers.
func (f *FFmpegCapturer) Stop() {
	if f.cmd == nil {
		return
	}
	_ = f.cmd.Process.Signal(syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		_ = f.cmd.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		_ = f.cmd.Process.Kill()
		<-done
	}

	f.cmd = nil
	f.stdout = nil
	log.Info().Str("module", "browser.audio").Msg("audio capture stopped")
}
