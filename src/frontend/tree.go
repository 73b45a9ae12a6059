// tree.go exposes the frontend's two entry points: TokenStream, a debug dump of the raw lexeme
// stream, and this package's real output path, Parse (defined in parser.go), which drives the
// lexer straight into AtomIR construction.
package frontend

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"atomc/src/util"
)

// TokenStream lexes src and writes its token stream to the program's output writer, one token per
// line. This is a debugging aid only -- it never participates in a real parse.
func TokenStream(src string) error {
	l := newLexer(src, lexGlobal)
	go l.run()

	wr := util.NewWriter()
	defer wr.Close()
	sb := strings.Builder{}
	tw := tabwriter.NewWriter(&sb, 10, 20, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "Value\tType\tPosition\n")
	for {
		t := l.nextItem()
		switch t.typ {
		case itemEOF:
			var err error
			if err2 := tw.Flush(); err2 != nil {
				err = err2
			}
			wr.WriteString(sb.String())
			return err
		case itemError:
			wr.WriteString(sb.String())
			return errors.New(t.val)
		default:
			if len(t.val) > 20 {
				_, _ = fmt.Fprintf(tw, "%.17q...\t%s\tline: %d:%d\n", t.val, tokenName(t.typ), t.line, t.pos)
			} else {
				_, _ = fmt.Fprintf(tw, "%q\t%s\tline: %d:%d\n", t.val, tokenName(t.typ), t.line, t.pos)
			}
		}
	}
}

// tokenName renders an itemType for display in TokenStream's output. Single-character tokens
// (emitted as itemType(r) straight from the rune that produced them) print as that rune.
func tokenName(t itemType) string {
	switch t {
	case IDENTIFIER:
		return "IDENTIFIER"
	case INTEGER:
		return "INTEGER"
	case FLOAT:
		return "FLOAT"
	case ASSIGN:
		return "="
	case EQ:
		return "=="
	case NE:
		return "!="
	case LE:
		return "<="
	case GE:
		return ">="
	case AND:
		return "&&"
	case OR:
		return "||"
	case LSHIFT:
		return "<<"
	case RSHIFT:
		return ">>"
	case KwInt:
		return "int"
	case KwFloat:
		return "float"
	case KwVoid:
		return "void"
	case KwIf:
		return "if"
	case KwElse:
		return "else"
	case KwWhile:
		return "while"
	case KwReturn:
		return "return"
	default:
		return fmt.Sprintf("%c", rune(t))
	}
}
