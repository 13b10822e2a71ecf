// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package remoteconfig

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/spf13/afero"

	"go.chromium.org/remotetest/errors"
)

const testPath = "/home/alice/.remote_test"

func newTestStore(t *testing.T, files map[string]string) (*Store, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	for p, c := range files {
		if err := afero.WriteFile(fs, p, []byte(c), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return NewStore(testPath, WithFs(fs), WithHome("/home/alice"), WithDefaultLocal("/home/alice/src/proj")), fs
}

func TestLoadNormalizes(t *testing.T) {
	for _, tc := range []struct {
		name string
		yaml string
		want *Config
	}{
		{
			name: "scalars",
			yaml: `
user: smoker
host: h1
root: /y
local: /x
perl: /usr/bin/perl
ssh: /usr/bin/ssh
ssh_args: -x   -S  ~/.ssh/master-%r@%h:%p
master: yes
`,
			want: &Config{
				User:             "smoker",
				Hosts:            []string{"h1"},
				RemoteRoot:       "/y/",
				LocalRoot:        "/x/",
				Perl:             "/usr/bin/perl",
				SSH:              "/usr/bin/ssh",
				SSHArgs:          []string{"-x", "-S", "~/.ssh/master-%r@%h:%p"},
				ReuseConnections: true,
			},
		},
		{
			name: "sequences",
			yaml: `
user: smoker
host: [h1, h2, h1]
root: /y/
local: /x/
ssh: ssh
ssh_args: ["-o", "BatchMode yes"]
master: 0
unknown_key: ignored
`,
			want: &Config{
				User:       "smoker",
				Hosts:      []string{"h1", "h2", "h1"},
				RemoteRoot: "/y/",
				LocalRoot:  "/x/",
				SSH:        "ssh",
				SSHArgs:    []string{"-o", "BatchMode yes"},
			},
		},
		{
			name: "extra separators and tilde",
			yaml: `
host: h1
root: /y///
local: ~/src/proj//
master: "off"
`,
			want: &Config{Hosts: []string{"h1"}, RemoteRoot: "/y/", LocalRoot: "/home/alice/src/proj/"},
		},
		{
			name: "master absent",
			yaml: "host: h1\nroot: /y\nlocal: /x\n",
			want: &Config{Hosts: []string{"h1"}, RemoteRoot: "/y/", LocalRoot: "/x/", ReuseConnections: true},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s, _ := newTestStore(t, map[string]string{testPath: tc.yaml})
			cfg, err := s.Load(context.Background())
			if err != nil {
				t.Fatal("Load failed: ", err)
			}
			if diff := cmp.Diff(cfg, tc.want, cmpopts.IgnoreUnexported(Config{}), cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("Config mismatch (-got +want):\n%s", diff)
			}
		})
	}
}

func TestScalarHostBecomesSingleElementList(t *testing.T) {
	for _, host := range []string{"h1", "smoke-server.example.com", "10.0.0.7"} {
		s, _ := newTestStore(t, map[string]string{testPath: "host: " + host + "\n"})
		cfg, err := s.Load(context.Background())
		if err != nil {
			t.Fatal("Load failed: ", err)
		}
		if diff := cmp.Diff(cfg.Hosts, []string{host}); diff != "" {
			t.Errorf("Hosts for %q mismatch (-got +want):\n%s", host, diff)
		}
	}
}

func TestNormalizationIsIdempotent(t *testing.T) {
	for _, p := range []string{"/y", "/y/", "/y//", "/a/b/c", "/"} {
		once := withTrailingSlash(p)
		if twice := withTrailingSlash(once); twice != once {
			t.Errorf("withTrailingSlash(withTrailingSlash(%q)) = %q; want %q", p, twice, once)
		}
		if once[len(once)-1] != '/' || (len(once) > 1 && once[len(once)-2] == '/') {
			t.Errorf("withTrailingSlash(%q) = %q; want exactly one trailing separator", p, once)
		}
		local := normalizeLocal(p, "/home/alice")
		if again := normalizeLocal(local, "/home/alice"); again != local {
			t.Errorf("normalizeLocal not idempotent for %q: %q then %q", p, local, again)
		}
	}
}

func TestLoadWritesDefault(t *testing.T) {
	s, fs := newTestStore(t, nil)

	cfg, err := s.Load(context.Background())
	if err != nil {
		t.Fatal("Load failed: ", err)
	}
	if ok, _ := afero.Exists(fs, testPath); !ok {
		t.Fatalf("Default configuration was not written to %s", testPath)
	}

	want := &Config{
		User:             "smoker",
		Hosts:            []string{"smoke-server.example.com"},
		RemoteRoot:       "/home/smoker/remote-test/",
		LocalRoot:        "/home/alice/src/proj/",
		Perl:             "/usr/bin/perl",
		SSH:              "/usr/bin/ssh",
		SSHArgs:          []string{"-x", "-S", "~/.ssh/master-%r@%h:%p"},
		ReuseConnections: true,
	}
	if diff := cmp.Diff(cfg, want, cmpopts.IgnoreUnexported(Config{})); diff != "" {
		t.Errorf("Default config mismatch (-got +want):\n%s", diff)
	}

	// A second load reads the file that was just written and yields the same.
	again, err := NewStore(testPath, WithFs(fs), WithHome("/home/alice"), WithDefaultLocal("/elsewhere")).Load(context.Background())
	if err != nil {
		t.Fatal("Second Load failed: ", err)
	}
	if diff := cmp.Diff(again, want, cmpopts.IgnoreUnexported(Config{})); diff != "" {
		t.Errorf("Reloaded config mismatch (-got +want):\n%s", diff)
	}
}

func TestLoadMalformed(t *testing.T) {
	for _, content := range []string{
		"host: [h1\n",
		"host: {a: b}\n",
		"master: maybe\n",
		"- just\n- a list\n",
	} {
		s, _ := newTestStore(t, map[string]string{testPath: content})
		_, err := s.Load(context.Background())
		var cerr *Error
		if !errors.As(err, &cerr) {
			t.Errorf("Load(%q) = %v; want *Error", content, err)
			continue
		}
		if cerr.Path != testPath {
			t.Errorf("Error path = %q; want %q", cerr.Path, testPath)
		}
	}
}

func TestLoadUnwritableDefault(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	s := NewStore(testPath, WithFs(fs), WithHome("/home/alice"))
	_, err := s.Load(context.Background())
	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Errorf("Load = %v; want *Error", err)
	}
}

func TestGet(t *testing.T) {
	s, _ := newTestStore(t, map[string]string{testPath: "user: bob\nhost: h1\nroot: /y\nlocal: /x\nssh_args: -x\nmaster: false\n"})
	ctx := context.Background()

	for _, tc := range []struct {
		key  string
		want interface{}
	}{
		{KeyUser, "bob"},
		{KeyHost, []string{"h1"}},
		{KeyRoot, "/y/"},
		{KeyLocal, "/x/"},
		{KeySSHArgs, []string{"-x"}},
		{KeyMaster, false},
		{KeyPerl, ""},
	} {
		got, err := s.Get(ctx, tc.key)
		if err != nil {
			t.Errorf("Get(%q) failed: %v", tc.key, err)
			continue
		}
		if diff := cmp.Diff(got, tc.want); diff != "" {
			t.Errorf("Get(%q) mismatch (-got +want):\n%s", tc.key, diff)
		}
	}

	if _, err := s.Get(ctx, "colour"); err == nil {
		t.Error("Get(unknown key) succeeded unexpectedly")
	}
}

func TestUserHost(t *testing.T) {
	const sshConfig = `
Host h1
  User carol

Host *.lab
  User labuser
`
	s, _ := newTestStore(t, map[string]string{
		testPath:                   "host: [h1, h2, box.lab]\nroot: /y\nlocal: /x\n",
		"/home/alice/.ssh/config": sshConfig,
	})
	cfg, err := s.Load(context.Background())
	if err != nil {
		t.Fatal("Load failed: ", err)
	}
	for host, want := range map[string]string{
		"h1":      "carol@h1",
		"h2":      "h2",
		"box.lab": "labuser@box.lab",
	} {
		if got := cfg.UserHost(host); got != want {
			t.Errorf("UserHost(%q) = %q; want %q", host, got, want)
		}
	}

	s, _ = newTestStore(t, map[string]string{
		testPath:                   "user: dave\nhost: [h1, h1, h2]\n",
		"/home/alice/.ssh/config": sshConfig,
	})
	cfg, err = s.Load(context.Background())
	if err != nil {
		t.Fatal("Load failed: ", err)
	}
	if diff := cmp.Diff(cfg.UserHosts(), []string{"dave@h1", "dave@h2"}); diff != "" {
		t.Errorf("UserHosts mismatch (-got +want):\n%s", diff)
	}
}

func TestUserHostWithoutUserIsBareHost(t *testing.T) {
	// No user key and no ~/.ssh/config: the ssh client chooses the user, so
	// "-l" in ssh_args keeps working.
	s, _ := newTestStore(t, map[string]string{
		testPath: "host: [h1, h2]\nroot: /y\nlocal: /x\nssh_args: -x -l carol\n",
	})
	cfg, err := s.Load(context.Background())
	if err != nil {
		t.Fatal("Load failed: ", err)
	}
	if diff := cmp.Diff(cfg.UserHosts(), []string{"h1", "h2"}); diff != "" {
		t.Errorf("UserHosts mismatch (-got +want):\n%s", diff)
	}
}
