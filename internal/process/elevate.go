package process

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
)

const sudoHelper = "sudo"

// elevatedArgv recomposes a launch as "<helper> <bin> <args...>".
func elevatedArgv(helper, bin string, args []string) (string, []string) {
	argv := make([]string, 0, len(args)+1)
	argv = append(argv, bin)
	argv = append(argv, args...)
	return helper, argv
}

// startProcessScript builds the PowerShell command that launches bin hidden
// and elevated. Every argument is single-quoted so the -ArgumentList array
// survives PowerShell parsing unchanged.
func startProcessScript(bin string, args []string) string {
	var b strings.Builder
	b.WriteString("Start-Process -FilePath ")
	b.WriteString(psQuote(bin))
	if len(args) > 0 {
		quoted := make([]string, len(args))
		for i, a := range args {
			quoted[i] = psQuote(a)
		}
		b.WriteString(" -ArgumentList @(")
		b.WriteString(strings.Join(quoted, ", "))
		b.WriteString(")")
	}
	b.WriteString(" -Verb RunAs -WindowStyle Hidden")
	return b.String()
}

func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// decodeDiagnostic turns command stderr into text. Consoles on Chinese
// Windows installs emit GBK, so non-UTF-8 input is decoded as GBK.
func decodeDiagnostic(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	if utf8.Valid(b) {
		return strings.TrimSpace(string(b))
	}
	out, err := simplifiedchinese.GBK.NewDecoder().Bytes(b)
	if err != nil {
		return strings.TrimSpace(strings.ToValidUTF8(string(b), "?"))
	}
	return strings.TrimSpace(string(out))
}
