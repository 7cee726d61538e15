package main

import (
	"context"
	"io/ioutil"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavefronthq/graphite-parser/internal/options"
)

func writeFile(t *testing.T, dir, name, contents string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, ioutil.WriteFile(path, []byte(contents), 0644))
	return path
}

func tempDir(t *testing.T) string {
	dir, err := ioutil.TempDir("", "graphite-parser")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func TestRunWithInputFile(t *testing.T) {
	dir := tempDir(t)
	output := filepath.Join(dir, "out.lp")
	cfgFile := writeFile(t, dir, "config.yaml", `
templates:
  '^servers\..*': "measurement.host.field*"
tags:
  env: dev
sinks:
- type: influx
  output: `+output+`
`)
	input := writeFile(t, dir, "input.txt", strings.Join([]string{
		"servers.web01.cpu.idle 95.5 1419972457825",
		"bogus",
		"servers.web02.cpu.user 4.5 1419972457826",
	}, "\n"))

	opts := options.NewParserRunOptions()
	opts.ConfigFile = cfgFile
	opts.Input = input
	require.NoError(t, run(context.Background(), opts))

	contents, err := ioutil.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t,
		"servers,env=dev,host=web01 cpu_idle=95.5 1419972457825000000\n"+
			"servers,env=dev,host=web02 cpu_user=4.5 1419972457826000000\n",
		string(contents))
}

func TestRunMissingInput(t *testing.T) {
	dir := tempDir(t)
	opts := options.NewParserRunOptions()
	opts.Input = filepath.Join(dir, "missing.txt")
	opts.ConfigFile = writeFile(t, dir, "config.yaml", "sinks:\n- type: influx\n  output: "+filepath.Join(dir, "out.lp")+"\n")
	assert.Error(t, run(context.Background(), opts))
}

func TestRunListenerStopsOnCancel(t *testing.T) {
	dir := tempDir(t)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	listener.Close()

	opts := options.NewParserRunOptions()
	opts.ListenAddress = addr
	opts.ConfigFile = writeFile(t, dir, "config.yaml", "sinks:\n- type: influx\n  output: "+filepath.Join(dir, "out.lp")+"\n")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, opts) }()

	var conn net.Conn
	require.Eventually(t, func() bool {
		conn, err = net.Dial("tcp", addr)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	conn.Close()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	dir := tempDir(t)
	templates := writeFile(t, dir, "templates.json", `{"^a\\..*": "measurement.field"}`)

	opts := options.NewParserRunOptions()
	opts.TemplatesFile = templates
	opts.ListenAddress = ":12003"

	cfg, err := loadConfig(opts)
	require.NoError(t, err)
	assert.Equal(t, templates, cfg.TemplatesFile)
	assert.Equal(t, ":12003", cfg.Listener.Address)
	require.Len(t, cfg.Sinks, 1)
	assert.Equal(t, "influx", cfg.Sinks[0].Type)

	parser, err := buildParser(cfg)
	require.NoError(t, err)
	p, err := parser.Parse("a.cpu 1 1")
	require.NoError(t, err)
	assert.Equal(t, "a", p.Measurement)
	assert.Equal(t, map[string]float64{"cpu": 1}, p.Fields)
}

func TestLoadConfigInvalid(t *testing.T) {
	dir := tempDir(t)
	opts := options.NewParserRunOptions()
	opts.ConfigFile = writeFile(t, dir, "config.yaml", "sinks:\n- type: kafka\n")
	_, err := loadConfig(opts)
	assert.Error(t, err)

	opts.ConfigFile = filepath.Join(dir, "missing.yaml")
	_, err = loadConfig(opts)
	assert.Error(t, err)
}

func TestBuildParserLegacyWildcardRange(t *testing.T) {
	dir := tempDir(t)
	opts := options.NewParserRunOptions()
	opts.ConfigFile = writeFile(t, dir, "config.yaml", `
legacyWildcardRange: true
templates:
  '^a\..*': "measurement*.field"
`)
	cfg, err := loadConfig(opts)
	require.NoError(t, err)
	parser, err := buildParser(cfg)
	require.NoError(t, err)

	p, err := parser.Parse("a.b.c.d 1 1")
	require.NoError(t, err)
	assert.Equal(t, "a.b.c", p.Measurement)
}
