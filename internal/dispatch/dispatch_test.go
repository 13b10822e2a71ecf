// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package dispatch_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"go.chromium.org/remotetest/internal/dispatch"
	"go.chromium.org/remotetest/internal/harness"
	"go.chromium.org/remotetest/internal/mirror"
	"go.chromium.org/remotetest/internal/remoteconfig"
)

func testConfig(hosts ...string) *remoteconfig.Config {
	return &remoteconfig.Config{
		User:       "smoker",
		Hosts:      hosts,
		LocalRoot:  "/x/",
		RemoteRoot: "/y/",
		Perl:       "/usr/bin/perl",
		SSH:        "/usr/bin/ssh",
		SSHArgs:    []string{"-x", "-S", "~/.ssh/master-%r@%h:%p"},
	}
}

func TestSelectHostRoundRobin(t *testing.T) {
	d, err := dispatch.New(testConfig("h1", "h2", "h3"), "/x")
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for i := 0; i < 7; i++ {
		got = append(got, d.SelectHost())
	}
	want := []string{"h1", "h2", "h3", "h1", "h2", "h3", "h1"}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("SelectHost sequence mismatch (-got +want):\n%s", diff)
	}
}

func TestSelectHostConcurrent(t *testing.T) {
	const (
		workers = 8
		perWork = 300
	)
	hosts := []string{"h1", "h2", "h3"}
	d, err := dispatch.New(testConfig(hosts...), "/x")
	if err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	counts := make(map[string]int)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make(map[string]int)
			for j := 0; j < perWork; j++ {
				local[d.SelectHost()]++
			}
			mu.Lock()
			defer mu.Unlock()
			for h, n := range local {
				counts[h] += n
			}
		}()
	}
	wg.Wait()

	want := map[string]int{"h1": 800, "h2": 800, "h3": 800}
	if diff := cmp.Diff(counts, want); diff != "" {
		t.Errorf("Host counts mismatch (-got +want):\n%s", diff)
	}
}

func TestRemoteDir(t *testing.T) {
	for _, tc := range []struct {
		cwd  string
		want string
	}{
		{"/x", "/y/"},
		{"/x/", "/y/"},
		{"/x/t", "/y/t"},
		{"/x/t/unit", "/y/t/unit"},
	} {
		d, err := dispatch.New(testConfig("h1"), tc.cwd)
		if err != nil {
			t.Errorf("New(%q) failed: %v", tc.cwd, err)
			continue
		}
		if got := d.RemoteDir(); got != tc.want {
			t.Errorf("RemoteDir() for %q = %q; want %q", tc.cwd, got, tc.want)
		}
	}
}

func TestNewOutsideRoot(t *testing.T) {
	if _, err := dispatch.New(testConfig("h1"), "/xyz"); err == nil {
		t.Error("New succeeded for a directory outside the local root")
	}
}

func TestConfigure(t *testing.T) {
	d, err := dispatch.New(testConfig("h1", "h2"), "/x")
	if err != nil {
		t.Fatal(err)
	}
	h := harness.New("perl", "-w")
	h.Jobs = 3
	d.Configure(h)
	if h.Interpreter != "/usr/bin/ssh" {
		t.Errorf("Interpreter = %q; want /usr/bin/ssh", h.Interpreter)
	}
	if h.Jobs != 6 {
		t.Errorf("Jobs = %d; want 6", h.Jobs)
	}
}

func TestRewrite(t *testing.T) {
	d, err := dispatch.New(testConfig("h1", "h2"), "/x/t")
	if err != nil {
		t.Fatal(err)
	}
	paths := mirror.RewritePaths("/x/lib:/other/lib", "/x/", "/y/")

	var got []harness.Invocation
	for _, test := range []string{"a.t", "b c.t"} {
		inv := &harness.Invocation{
			Test:    test,
			Program: "/usr/bin/ssh",
			Args:    []string{"-w", "-I/x/lib", "-Ilocal", test},
		}
		d.Rewrite(context.Background(), inv, paths)
		got = append(got, *inv)
	}

	sshArgs := []string{"-x", "-S", "~/.ssh/master-%r@%h:%p"}
	want := []harness.Invocation{
		{
			Test:    "a.t",
			Program: "/usr/bin/ssh",
			Args: append(append([]string(nil), sshArgs...), "smoker@h1",
				"cd /y/t && PERL5LIB=/y/lib:/other/lib /usr/bin/perl -w -I/y/lib -Ilocal a.t"),
			Host: "h1",
		},
		{
			Test:    "b c.t",
			Program: "/usr/bin/ssh",
			Args: append(append([]string(nil), sshArgs...), "smoker@h2",
				"cd /y/t && PERL5LIB=/y/lib:/other/lib /usr/bin/perl -w -I/y/lib -Ilocal 'b c.t'"),
			Host: "h2",
		},
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Rewrite mismatch (-got +want):\n%s", diff)
	}
}

func TestRewriteTildeRemoteRoot(t *testing.T) {
	cfg := testConfig("h1")
	cfg.RemoteRoot = "~/remote-test/"
	d, err := dispatch.New(cfg, "/x/t")
	if err != nil {
		t.Fatal(err)
	}
	paths := mirror.RewritePaths("/x/lib:/other/lib", cfg.LocalRoot, cfg.RemoteRoot)
	inv := &harness.Invocation{Test: "a.t", Args: []string{"-I/x/lib", "-I/opt/a:b", "a.t"}}
	d.Rewrite(context.Background(), inv, paths)

	// "~" must stay unquoted at the start of a word for the remote shell to
	// expand it.
	const want = "cd ~/remote-test/t && PERL5LIB=~/remote-test/lib:/other/lib " +
		"/usr/bin/perl -I ~/remote-test/lib -I/opt/a:b a.t"
	if got := inv.Args[len(inv.Args)-1]; got != want {
		t.Errorf("Remote command = %q; want %q", got, want)
	}
}

func TestRewriteIncludeWithColon(t *testing.T) {
	d, err := dispatch.New(testConfig("h1"), "/x")
	if err != nil {
		t.Fatal(err)
	}
	inv := &harness.Invocation{Test: "a.t", Args: []string{"-I/x/odd:/x/dir", "a.t"}}
	d.Rewrite(context.Background(), inv, mirror.PathSet{})

	if got, want := inv.Args[len(inv.Args)-1], "cd /y/ && /usr/bin/perl -I/y/odd:/x/dir a.t"; got != want {
		t.Errorf("Remote command = %q; want %q", got, want)
	}
}

func TestRewriteEmptyPaths(t *testing.T) {
	cfg := testConfig("h1")
	cfg.Perl = ""
	d, err := dispatch.New(cfg, "/x")
	if err != nil {
		t.Fatal(err)
	}
	inv := &harness.Invocation{Test: "a.t", Args: []string{"a.t"}}
	d.Rewrite(context.Background(), inv, mirror.PathSet{})

	if got, want := inv.Args[len(inv.Args)-1], "cd /y/ && perl a.t"; got != want {
		t.Errorf("Remote command = %q; want %q", got, want)
	}
}

func TestRewriteDoesNotAliasSSHArgs(t *testing.T) {
	cfg := testConfig("h1")
	cfg.SSHArgs = make([]string, 1, 8)
	cfg.SSHArgs[0] = "-x"
	d, err := dispatch.New(cfg, "/x")
	if err != nil {
		t.Fatal(err)
	}
	inv1 := &harness.Invocation{Test: "a.t", Args: []string{"a.t"}}
	inv2 := &harness.Invocation{Test: "b.t", Args: []string{"b.t"}}
	d.Rewrite(context.Background(), inv1, mirror.PathSet{})
	d.Rewrite(context.Background(), inv2, mirror.PathSet{})

	if got, want := inv1.Args[len(inv1.Args)-1], "cd /y/ && /usr/bin/perl a.t"; got != want {
		t.Errorf("First remote command = %q; want %q", got, want)
	}
	if diff := cmp.Diff(cfg.SSHArgs, []string{"-x"}); diff != "" {
		t.Errorf("SSHArgs modified (-got +want):\n%s", diff)
	}
}
