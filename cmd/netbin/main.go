// Command netbin converts between JSON values and netbin wire bytes
// using a shape document.
//
//	netbin encode [--config f] [-s schema] [-t type] [--in f] [--out f] [--hex] [--digest] [--validate]
//	netbin decode [--config f] [-s schema] [-t type] [--in f] [--out f] [--hex] [--format json|yaml|cbor] [--stream]
//	netbin shape  [--config f] [-s schema] [-t type]
package main

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/tidwall/jsonc"
	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"

	"github.com/dadrian/netbin"
	"github.com/dadrian/netbin/internal/config"
	"github.com/dadrian/netbin/internal/logging"
	"github.com/dadrian/netbin/shape"
)

const usage = `usage: netbin <command> [flags]

commands:
  encode   read JSON values and write their wire encoding
  decode   read wire bytes and write the values they hold
  shape    print the resolved shape
`

func main() {
	logging.Install(logging.New(logging.Defaults(logging.ProfileRuntime), os.Stderr))
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fatalf("%v", err)
	}
}

func fatalf(f string, args ...any) {
	log.Error().Msgf(f, args...)
	os.Exit(1)
}

type options struct {
	config   string
	schema   string
	typ      string
	in       string
	out      string
	hex      bool
	digest   bool
	validate bool
	format   string
	stream   bool
}

// run executes one subcommand. Flags given explicitly win over the
// config file.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return errors.New("missing command")
	}
	cmd, args := args[0], args[1:]

	var o options
	fs := pflag.NewFlagSet("netbin "+cmd, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.config, "config", "", "config file (default $"+config.EnvConfig+")")
	fs.StringVarP(&o.schema, "schema", "s", "", "shape document")
	fs.StringVarP(&o.typ, "type", "t", "", "type name or shape expression (default: the schema's root)")
	switch cmd {
	case "encode":
		fs.StringVar(&o.in, "in", "-", "input JSON file (or - for stdin)")
		fs.StringVar(&o.out, "out", "-", "output file (or - for stdout)")
		fs.BoolVar(&o.hex, "hex", false, "write hex instead of binary")
		fs.BoolVar(&o.digest, "digest", false, "write the BLAKE3-256 digest of the encoding instead of the encoding")
		fs.BoolVar(&o.validate, "validate", false, "encode without writing output")
	case "decode":
		fs.StringVar(&o.in, "in", "-", "input file (or - for stdin)")
		fs.StringVar(&o.out, "out", "-", "output file (or - for stdout)")
		fs.BoolVar(&o.hex, "hex", false, "input is hex rather than binary")
		fs.StringVar(&o.format, "format", "", "output format: json, yaml or cbor")
		fs.BoolVar(&o.stream, "stream", false, "decode successive values until the input ends")
	case "shape":
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%s: unexpected argument %q", cmd, fs.Arg(0))
	}

	conf, err := config.Load(config.Path(o.config))
	if err != nil {
		return err
	}
	if !fs.Changed("schema") {
		o.schema = conf.Schema
	}
	if !fs.Changed("type") {
		o.typ = conf.Type
	}
	if cmd == "decode" {
		if !fs.Changed("hex") {
			o.hex = conf.Hex
		}
		if !fs.Changed("format") {
			o.format = string(conf.Format)
		}
	} else if cmd == "encode" && !fs.Changed("hex") {
		o.hex = conf.Hex
	}

	lc := logging.Defaults(logging.ProfileRuntime)
	if lvl, ok := logging.ParseLevel(conf.LogLevel); ok {
		lc.Level = lvl
	}
	logging.ApplyEnv(&lc)
	logging.Install(logging.New(lc, stderr))

	schema, err := loadSchema(o.schema, conf.Types)
	if err != nil {
		return err
	}
	if cmd == "shape" {
		return printShape(schema, o.typ, stdout)
	}
	sh, err := schema.Pick(o.typ)
	if err != nil {
		return err
	}
	log.Debug().Str("command", cmd).Str("shape", sh.String()).Msg("shape resolved")

	if cmd == "encode" {
		return encode(o, sh, stdin, stdout)
	}
	return decode(o, sh, stdin, stdout)
}

// loadSchema reads the shape document at path, if any, and adds the
// extra declarations. Declarations may refer to one another, so they
// are retried until a pass makes no progress.
func loadSchema(path string, types map[string]string) (*shape.Schema, error) {
	schema := &shape.Schema{}
	if path != "" {
		var err error
		if schema, err = shape.LoadFile(path); err != nil {
			return nil, err
		}
	}
	pending := maps.Clone(types)
	for len(pending) > 0 {
		var lastErr error
		progress := false
		for _, name := range slices.Sorted(maps.Keys(pending)) {
			if err := schema.Define(name, pending[name]); err != nil {
				lastErr = err
				continue
			}
			delete(pending, name)
			progress = true
		}
		if !progress {
			return nil, lastErr
		}
	}
	return schema, nil
}

func printShape(schema *shape.Schema, typ string, w io.Writer) error {
	if typ == "" {
		_, err := io.WriteString(w, schema.String())
		return err
	}
	sh, err := schema.Pick(typ)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, sh.Expr())
	return err
}

func encode(o options, sh *shape.Shape, stdin io.Reader, stdout io.Writer) error {
	src, err := readInput(o.in, stdin)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(src)))
	dec.UseNumber()

	var buf bytes.Buffer
	enc := netbin.NewEncoder(&buf)
	n := 0
	for {
		var v any
		if err := dec.Decode(&v); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("parse input: %w", err)
		}
		if err := enc.Encode(shape.Value{Shape: sh, V: v}); err != nil {
			return fmt.Errorf("encode value %d: %w", n, err)
		}
		n++
	}
	if n == 0 {
		return errors.New("encode: input holds no value")
	}
	log.Debug().Int("values", n).Int("bytes", buf.Len()).Msg("encoded")
	if o.validate {
		return nil
	}

	return withOutput(o.out, stdout, func(w io.Writer) error {
		switch {
		case o.digest:
			sum := blake3.Sum256(buf.Bytes())
			_, err := fmt.Fprintln(w, hex.EncodeToString(sum[:]))
			return err
		case o.hex:
			if _, err := hex.NewEncoder(w).Write(buf.Bytes()); err != nil {
				return err
			}
			_, err := w.Write([]byte("\n"))
			return err
		default:
			_, err := w.Write(buf.Bytes())
			return err
		}
	})
}

func decode(o options, sh *shape.Shape, stdin io.Reader, stdout io.Writer) error {
	format, err := config.ParseFormat(o.format)
	if err != nil {
		return err
	}
	data, err := readInput(o.in, stdin)
	if err != nil {
		return err
	}
	if o.hex {
		if data, err = hex.DecodeString(strings.Join(strings.Fields(string(data)), "")); err != nil {
			return fmt.Errorf("decode hex input: %w", err)
		}
	}

	var values []any
	if o.stream {
		r := bytes.NewReader(data)
		dec := netbin.NewDecoder(r)
		for r.Len() > 0 {
			v, err := shape.Decode(dec, sh)
			if err != nil {
				return fmt.Errorf("decode value %d: %w", len(values), err)
			}
			values = append(values, v)
		}
	} else {
		v, err := shape.Unmarshal(data, sh)
		if err != nil {
			return err
		}
		values = append(values, v)
	}
	log.Debug().Int("values", len(values)).Int("bytes", len(data)).Msg("decoded")

	return withOutput(o.out, stdout, func(w io.Writer) error {
		return writeValues(w, format, values)
	})
}

func writeValues(w io.Writer, format config.Format, values []any) error {
	switch format {
	case config.FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		for _, v := range values {
			if err := enc.Encode(yamlValue(v)); err != nil {
				return err
			}
		}
		return enc.Close()
	case config.FormatCBOR:
		em, err := cbor.CoreDetEncOptions().EncMode()
		if err != nil {
			return err
		}
		for _, v := range values {
			b, err := em.Marshal(v)
			if err != nil {
				return err
			}
			if _, err := w.Write(b); err != nil {
				return err
			}
		}
		return nil
	default:
		enc := json.NewEncoder(w)
		for _, v := range values {
			if err := enc.Encode(v); err != nil {
				return err
			}
		}
		return nil
	}
}

// yamlValue replaces byte strings with base64 text, matching the JSON
// rendering.
func yamlValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return base64.StdEncoding.EncodeToString(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = yamlValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = yamlValue(e)
		}
		return out
	}
	return v
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" || path == "" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return b, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return b, nil
}

func withOutput(path string, stdout io.Writer, write func(io.Writer) error) error {
	if path == "-" || path == "" {
		return write(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
