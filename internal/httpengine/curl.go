package httpengine

import (
	"strings"

	"github.com/slumberhq/slumber/internal/collection"
)

// BuildCurl renders a BuiltRequest as a deterministic, copy-pasteable curl
// command: `--request` and `--url` first, one `--header` per header in
// authored order, then the body using the flag that matches how it was
// authored (`--data-raw` for raw/JSON, `--data-urlencode` per field for
// form_urlencoded, `--form` per field for multipart), and finally
// `--user`/`--oauth2-bearer` for authentication. Authorization is never
// duplicated as a plain header here even though Build adds one to Headers,
// since curl's own auth flags already reproduce it.
func BuildCurl(built *BuiltRequest) string {
	var sb strings.Builder
	sb.WriteString("curl --request ")
	sb.WriteString(shellQuote(built.Method))
	sb.WriteString(" --url ")
	sb.WriteString(shellQuote(built.URL))

	for _, h := range built.Headers {
		if strings.EqualFold(h.Name, "Authorization") && built.AuthKind != collection.AuthNone {
			continue
		}
		sb.WriteString(" --header ")
		sb.WriteString(shellQuote(h.Name + ": " + h.Value))
	}

	switch built.BodyKind {
	case collection.BodyRaw, collection.BodyJSON:
		if len(built.Body) > 0 {
			sb.WriteString(" --data-raw ")
			sb.WriteString(shellQuote(string(built.Body)))
		}
	case collection.BodyStream:
		if built.BodyPath != "" {
			sb.WriteString(" --data-binary ")
			sb.WriteString(shellQuote("@" + built.BodyPath))
		} else if len(built.Body) > 0 {
			sb.WriteString(" --data-raw ")
			sb.WriteString(shellQuote(string(built.Body)))
		}
	case collection.BodyFormURLEncoded:
		for _, f := range built.FormFields {
			sb.WriteString(" --data-urlencode ")
			sb.WriteString(shellQuote(f.Name + "=" + f.Value))
		}
	case collection.BodyFormMultipart:
		for _, f := range built.FormFields {
			sb.WriteString(" --form ")
			if f.IsFile {
				sb.WriteString(shellQuote(f.Name + "=@" + f.Value))
			} else {
				sb.WriteString(shellQuote(f.Name + "=" + f.Value))
			}
		}
	}

	switch built.AuthKind {
	case collection.AuthBasic:
		sb.WriteString(" --user ")
		sb.WriteString(shellQuote(built.BasicUser + ":" + built.BasicPass))
	case collection.AuthBearer:
		sb.WriteString(" --oauth2-bearer ")
		sb.WriteString(shellQuote(built.BearerToken))
	}

	return sb.String()
}

// shellQuote wraps s in single quotes, escaping any single quote inside
// it using the standard `'"'"'` trick so the result is safe to paste into
// a POSIX shell regardless of what the rendered value contains.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}
