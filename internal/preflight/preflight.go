// Package preflight checks the host before the bot starts: external tools on
// PATH, credentials, and writable state directories.
package preflight

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/eliseohh/anydownbot/internal/config"
)

type Severity string

const (
	OK      Severity = "ok"
	Warning Severity = "warning"
	Error   Severity = "error"
)

type Finding struct {
	Check    string
	Severity Severity
	Detail   string
}

type Env struct {
	LookPath func(string) (string, error)
	Stat     func(string) (os.FileInfo, error)
	// Writable reports whether files can be created in dir.
	Writable func(dir string) error
}

func DefaultEnv() Env {
	return Env{
		LookPath: exec.LookPath,
		Stat:     os.Stat,
		Writable: probeWrite,
	}
}

func Run(cfg config.Config, env Env) []Finding {
	var out []Finding

	for _, bin := range []struct{ check, name string }{
		{"yt-dlp", cfg.YTDLP.Binary},
		{"ffmpeg", "ffmpeg"},
	} {
		if p, err := env.LookPath(bin.name); err != nil {
			out = append(out, Finding{bin.check, Error, fmt.Sprintf("%s not found on PATH", bin.name)})
		} else {
			out = append(out, Finding{bin.check, OK, p})
		}
	}

	if cfg.Token == "" {
		out = append(out, Finding{"token", Error, "TOKEN is not set"})
	} else {
		out = append(out, Finding{"token", OK, "set"})
	}

	if cfg.YTDLP.CookieFile != "" {
		if _, err := env.Stat(cfg.YTDLP.CookieFile); err != nil {
			out = append(out, Finding{"cookies", Warning, fmt.Sprintf("%s unreadable, Instagram/Facebook may refuse downloads", cfg.YTDLP.CookieFile)})
		} else {
			out = append(out, Finding{"cookies", OK, cfg.YTDLP.CookieFile})
		}
	}

	dbDir := filepath.Dir(cfg.DBPath)
	if err := env.Writable(dbDir); err != nil {
		out = append(out, Finding{"database", Error, fmt.Sprintf("%s not writable: %v", dbDir, err)})
	} else {
		out = append(out, Finding{"database", OK, cfg.DBPath})
	}

	return out
}

// Failed counts error findings.
func Failed(fs []Finding) int {
	n := 0
	for _, f := range fs {
		if f.Severity == Error {
			n++
		}
	}
	return n
}

func probeWrite(dir string) error {
	f, err := os.CreateTemp(dir, ".anydown-probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
