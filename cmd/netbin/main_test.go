package main

import (
	"bytes"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/zeebo/blake3"

	"github.com/dadrian/netbin"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// runCmd runs the CLI with stdin and returns stdout.
func runCmd(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("NETBIN_CONFIG", "")
	t.Cleanup(func() { netbin.SetLogger(zerolog.Nop()) })
	var stdout, stderr bytes.Buffer
	err := run(args, strings.NewReader(stdin), &stdout, &stderr)
	return stdout.String(), err
}

func TestEncodeHex(t *testing.T) {
	out, err := runCmd(t, `[1, "a"] // trailing comment`, "encode", "-t", "tuple(u8, string)", "--hex")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if out != "01000161\n" {
		t.Fatalf("got %q want %q", out, "01000161\n")
	}
}

func TestEncodeSchemaFile(t *testing.T) {
	dir := t.TempDir()
	schema := writeFile(t, dir, "point.shape", "type Point = record { x: i16, y: i16 };\nseq<Point>\n")
	out, err := runCmd(t, `[{"x": 1, "y": -1}]`, "encode", "-s", schema)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := []byte{0, 1, 0, 1, 0xFF, 0xFF}
	if !bytes.Equal([]byte(out), want) {
		t.Fatalf("got %v want %v", []byte(out), want)
	}

	out, err = runCmd(t, `{"x": 2, "y": 3}`, "encode", "-s", schema, "-t", "Point", "--hex")
	if err != nil || out != "00020003\n" {
		t.Fatalf("named type: %q %v", out, err)
	}
}

func TestEncodeDigestAndValidate(t *testing.T) {
	out, err := runCmd(t, `[1, "a"]`, "encode", "-t", "tuple(u8, string)", "--digest")
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	sum := blake3Sum(t, []byte{1, 0, 1, 'a'})
	if out != sum+"\n" {
		t.Fatalf("got %q want %q", out, sum)
	}

	out, err = runCmd(t, `[1, "a"]`, "encode", "-t", "tuple(u8, string)", "--validate")
	if err != nil || out != "" {
		t.Fatalf("validate: %q %v", out, err)
	}
	if _, err := runCmd(t, `[300, "a"]`, "encode", "-t", "tuple(u8, string)", "--validate"); err == nil {
		t.Fatalf("out of range value validated")
	}
}

func TestEncodeMultipleValues(t *testing.T) {
	out, err := runCmd(t, "1\n2\n", "encode", "-t", "u8", "--hex")
	if err != nil || out != "0102\n" {
		t.Fatalf("got %q %v", out, err)
	}
	if _, err := runCmd(t, "  ", "encode", "-t", "u8"); err == nil {
		t.Fatalf("empty input accepted")
	}
	if _, err := runCmd(t, "[1,", "encode", "-t", "seq<u8>"); err == nil {
		t.Fatalf("malformed JSON accepted")
	}
}

func TestDecodeFormats(t *testing.T) {
	const typ = "tuple(u8, string)"
	out, err := runCmd(t, "01000161\n", "decode", "-t", typ, "--hex")
	if err != nil || out != `[1,"a"]`+"\n" {
		t.Fatalf("json: %q %v", out, err)
	}

	out, err = runCmd(t, "01 00 01 61", "decode", "-t", typ, "--hex", "--format", "cbor")
	if err != nil {
		t.Fatalf("cbor: %v", err)
	}
	if want := []byte{0x82, 0x01, 0x61, 'a'}; !bytes.Equal([]byte(out), want) {
		t.Fatalf("cbor: got %x want %x", out, want)
	}

	out, err = runCmd(t, string([]byte{0, 2, 'a', 'b'}), "decode", "-t", "record { a: bytes }", "--format", "yaml")
	if err != nil || out != "a: YWI=\n" {
		t.Fatalf("yaml: %q %v", out, err)
	}
}

func TestDecodeStream(t *testing.T) {
	out, err := runCmd(t, "0100016102000162", "decode", "-t", "tuple(u8, string)", "--hex", "--stream")
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if out != "[1,\"a\"]\n[2,\"b\"]\n" {
		t.Fatalf("got %q", out)
	}

	// Without --stream the second value is trailing input.
	_, err = runCmd(t, "0100016102000162", "decode", "-t", "tuple(u8, string)", "--hex")
	if !errors.Is(err, netbin.ErrTrailingBytes) {
		t.Fatalf("expected trailing bytes, got %v", err)
	}

	_, err = runCmd(t, "0100", "decode", "-t", "tuple(u8, string)", "--hex", "--stream")
	if netbin.KindOf(err) != netbin.ErrUnexpectedEOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "msg.shape", "type Id = u16;\n")
	conf := writeFile(t, dir, "netbin.toml", `
schema = "msg.shape"
type = "Msg"
hex = true
format = "yaml"
log_level = "error"

[types]
Msg = "tuple(Id, string)"
`)
	out, err := runCmd(t, `[7, "hi"]`, "encode", "--config", conf)
	if err != nil || out != "000700026869\n" {
		t.Fatalf("encode via config: %q %v", out, err)
	}
	out, err = runCmd(t, "000700026869", "decode", "--config", conf)
	if err != nil || out != "- 7\n- hi\n" {
		t.Fatalf("decode via config: %q %v", out, err)
	}
	// Flags override the file.
	out, err = runCmd(t, "000700026869", "decode", "--config", conf, "--format", "json")
	if err != nil || out != `[7,"hi"]`+"\n" {
		t.Fatalf("flag override: %q %v", out, err)
	}
}

func TestShapeCommand(t *testing.T) {
	dir := t.TempDir()
	schema := writeFile(t, dir, "s.shape", "# points\ntype Point = tuple(i32, i32);\nseq<Point>\n")
	out, err := runCmd(t, "", "shape", "-s", schema)
	if err != nil || out != "type Point = tuple(i32, i32);\nseq<Point>\n" {
		t.Fatalf("schema: %q %v", out, err)
	}
	out, err = runCmd(t, "", "shape", "-s", schema, "-t", "Point")
	if err != nil || out != "tuple(i32, i32)\n" {
		t.Fatalf("type: %q %v", out, err)
	}
	if _, err := runCmd(t, "", "shape", "-s", schema, "-t", "Missing"); err == nil {
		t.Fatalf("undefined type accepted")
	}
}

func TestUsageErrors(t *testing.T) {
	if _, err := runCmd(t, ""); err == nil {
		t.Fatalf("missing command accepted")
	}
	if _, err := runCmd(t, "", "frobnicate"); err == nil {
		t.Fatalf("unknown command accepted")
	}
	if _, err := runCmd(t, "", "decode", "--bogus"); err == nil {
		t.Fatalf("unknown flag accepted")
	}
	if _, err := runCmd(t, "", "decode", "-t", "u8", "--format", "xml"); err == nil {
		t.Fatalf("unknown format accepted")
	}
	if _, err := runCmd(t, "1", "encode"); err == nil {
		t.Fatalf("encode without a shape accepted")
	}
	if _, err := runCmd(t, "", "help"); err != nil {
		t.Fatalf("help: %v", err)
	}
}

func blake3Sum(t *testing.T, b []byte) string {
	t.Helper()
	h := blake3.New()
	h.Write(b)
	return hex.EncodeToString(h.Sum(nil))
}
