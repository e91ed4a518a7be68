package template

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/buger/jsonparser"
)

type funcSpec struct {
	minArgs int
	maxArgs int // -1 means unbounded
	run     func(ctx context.Context, tctx *Context, pos []Value, kw map[Identifier]Value) (Value, error)
}

// builtins is the fixed registry of functions callable from a template.
// Every entry here is grounded on a distinct real-world need: reading the
// environment and the filesystem, shelling out to a helper program,
// prompting the user, pulling a field out of a prior response, and the
// small text/encoding utilities that make those useful in practice.
var builtins = map[Identifier]funcSpec{
	"env":            {minArgs: 1, maxArgs: 1, run: fnEnv},
	"file":           {minArgs: 1, maxArgs: 1, run: fnFile},
	"command":        {minArgs: 1, maxArgs: -1, run: fnCommand},
	"prompt":         {minArgs: 1, maxArgs: 1, run: fnPrompt},
	"request":        {minArgs: 1, maxArgs: 1, run: fnRequest},
	"base64_encode":  {minArgs: 1, maxArgs: 1, run: fnBase64Encode},
	"base64_decode":  {minArgs: 1, maxArgs: 1, run: fnBase64Decode},
	"trim":           {minArgs: 1, maxArgs: 1, run: fnTrim},
	"json":           {minArgs: 2, maxArgs: 2, run: fnJSON},
}

func kwStringOr(kw map[Identifier]Value, name Identifier, def string) string {
	if v, ok := kw[name]; ok {
		return v.String()
	}
	return def
}

func kwBool(kw map[Identifier]Value, name Identifier) bool {
	v, ok := kw[name]
	return ok && v.String() == "true"
}

func fnEnv(_ context.Context, _ *Context, pos []Value, _ map[Identifier]Value) (Value, error) {
	name := pos[0].String()
	val, ok := os.LookupEnv(name)
	if !ok {
		return Value{}, &TypeMismatchError{Context: "env", Message: fmt.Sprintf("environment variable %q is not set", name)}
	}
	return stringValue(val), nil
}

func fnFile(_ context.Context, tctx *Context, pos []Value, _ map[Identifier]Value) (Value, error) {
	path := pos[0].String()
	if !filepath.IsAbs(path) && tctx.RootDir != "" {
		path = filepath.Join(tctx.RootDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Value{}, &TypeMismatchError{Context: "file", Message: err.Error()}
	}
	return Value{Bytes: data}, nil
}

func fnCommand(ctx context.Context, tctx *Context, pos []Value, _ map[Identifier]Value) (Value, error) {
	args := make([]string, len(pos))
	for i, v := range pos {
		args[i] = v.String()
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	if tctx.RootDir != "" {
		cmd.Dir = tctx.RootDir
	}
	out, err := cmd.Output()
	if err != nil {
		return Value{}, &TypeMismatchError{Context: "command", Message: err.Error()}
	}
	return stringValue(strings.TrimRight(string(out), "\n")), nil
}

func fnPrompt(ctx context.Context, tctx *Context, pos []Value, kw map[Identifier]Value) (Value, error) {
	label := pos[0].String()
	if tctx.Prompter == nil {
		return Value{}, &PromptCancelledError{Label: label}
	}
	opts := PromptOptions{
		Label:     label,
		Default:   kwStringOr(kw, "default", ""),
		Sensitive: kwBool(kw, "sensitive"),
	}
	answer, err := tctx.Prompter.Prompt(ctx, opts)
	if err != nil {
		return Value{}, err
	}
	return Value{Bytes: []byte(answer), Sensitive: opts.Sensitive}, nil
}

func fnRequest(_ context.Context, tctx *Context, pos []Value, _ map[Identifier]Value) (Value, error) {
	recipeID := pos[0].String()
	if tctx.Responses == nil {
		return Value{}, &TypeMismatchError{Context: "request", Message: "no prior responses are available in this context"}
	}
	body, err := tctx.Responses.LatestResponseBody(recipeID)
	if err != nil {
		return Value{}, &TypeMismatchError{Context: "request", Message: err.Error()}
	}
	return Value{Bytes: body}, nil
}

func fnBase64Encode(_ context.Context, _ *Context, pos []Value, _ map[Identifier]Value) (Value, error) {
	return stringValue(base64.StdEncoding.EncodeToString(pos[0].Bytes)), nil
}

func fnBase64Decode(_ context.Context, _ *Context, pos []Value, _ map[Identifier]Value) (Value, error) {
	decoded, err := base64.StdEncoding.DecodeString(pos[0].String())
	if err != nil {
		return Value{}, &TypeMismatchError{Context: "base64_decode", Message: err.Error()}
	}
	return Value{Bytes: decoded}, nil
}

func fnTrim(_ context.Context, _ *Context, pos []Value, _ map[Identifier]Value) (Value, error) {
	v := pos[0]
	return Value{Bytes: []byte(strings.TrimSpace(v.String())), Sensitive: v.Sensitive}, nil
}

// fnJSON extracts a single field from a JSON document by dotted path,
// e.g. `json(request("login"), "token")`. Uses jsonparser's zero-allocation
// single-field extraction rather than unmarshaling the whole document,
// since these documents are typically a prior response body.
func fnJSON(_ context.Context, _ *Context, pos []Value, _ map[Identifier]Value) (Value, error) {
	doc := pos[0].Bytes
	path := strings.Split(pos[1].String(), ".")
	val, dataType, _, err := jsonparser.Get(doc, path...)
	if err != nil {
		return Value{}, &TypeMismatchError{Context: "json", Message: err.Error()}
	}
	if dataType == jsonparser.String {
		unquoted, err := jsonparser.ParseString(val)
		if err == nil {
			return stringValue(unquoted), nil
		}
	}
	return Value{Bytes: val}, nil
}
