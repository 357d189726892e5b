package model_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/khsu/mailcat/internal/model"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := model.LoadConfig(path)
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}
	if cfg.RecvProtocol != model.ProtocolPOP3 {
		t.Errorf("expected pop3 default, got %q", cfg.RecvProtocol)
	}
	if cfg.SMTP.Host != "mx.hurricanesoft.com.tw" || cfg.SMTP.Port != 25 {
		t.Errorf("unexpected SMTP defaults %+v", cfg.SMTP)
	}
	if !cfg.SMTP.StartTLS {
		t.Error("expected STARTTLS by default")
	}
	if cfg.IMAP.Port != 993 || !cfg.IMAP.SSL {
		t.Errorf("unexpected IMAP defaults %+v", cfg.IMAP)
	}
	if cfg.POP3.Port != 995 || !cfg.POP3.SSL {
		t.Errorf("unexpected POP3 defaults %+v", cfg.POP3)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := &model.AppConfig{
		Email:        "kai@example.com",
		Name:         "Kai Hsu",
		Password:     "s3cret",
		Signature:    "Kai",
		RecvProtocol: model.ProtocolIMAP,
		SMTP:         model.SMTPConfig{Host: "smtp.example.com", Port: 587, StartTLS: true},
		IMAP:         model.ServerConfig{Host: "imap.example.com", Port: 993, SSL: true},
		POP3:         model.ServerConfig{Host: "pop.example.com", Port: 995, SSL: true},
	}

	if err := model.SaveConfig(path, cfg); err != nil {
		t.Fatalf("saving config: %v", err)
	}
	if cfg.ID == "" {
		t.Error("expected an ID to be generated on first save")
	}

	loaded, err := model.LoadConfig(path)
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}
	if loaded.ID != cfg.ID {
		t.Errorf("ID changed across save/load: %q vs %q", loaded.ID, cfg.ID)
	}
	if loaded.Email != "kai@example.com" || loaded.Name != "Kai Hsu" {
		t.Errorf("identity fields lost: %+v", loaded)
	}
	if loaded.Password != "s3cret" {
		t.Errorf("password did not round-trip, got %q", loaded.Password)
	}
	if loaded.RecvProtocol != model.ProtocolIMAP {
		t.Errorf("protocol lost: %q", loaded.RecvProtocol)
	}
	if loaded.SMTP != cfg.SMTP || loaded.IMAP != cfg.IMAP || loaded.POP3 != cfg.POP3 {
		t.Errorf("server sections lost: %+v", loaded)
	}
}

func TestSavedPasswordIsEncryptedOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := &model.AppConfig{
		Email:    "kai@example.com",
		Password: "plaintext-password",
	}
	if err := model.SaveConfig(path, cfg); err != nil {
		t.Fatalf("saving config: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading config file: %v", err)
	}
	if strings.Contains(string(raw), "plaintext-password") {
		t.Error("password stored in the clear")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat config: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("expected 0600 permissions, got %o", perm)
	}
}

func TestLoadConfigLegacyPlaintextPassword(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := "email: kai@example.com\npassword: old-plain\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := model.LoadConfig(path)
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}
	if cfg.Password != "old-plain" {
		t.Errorf("legacy plaintext password altered: %q", cfg.Password)
	}
}

func TestKeyAndCachePathsBesideConfig(t *testing.T) {
	path := "/home/kai/.config/mailcat/config.yaml"

	if got := model.KeyPath(path); got != "/home/kai/.config/mailcat/.mailcat.key" {
		t.Errorf("unexpected key path %q", got)
	}
	if got := model.CachePath(path); got != "/home/kai/.config/mailcat/mail_cache.db" {
		t.Errorf("unexpected cache path %q", got)
	}
}
