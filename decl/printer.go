package decl

import (
	"fmt"
	"io"
	"strings"
)

type CodePrinter interface {
	Indent(n int)
	Unindent(n int)
	Print(str string)
	Printf(fmt string, args ...any)
	Println(str string)
}

func WithIndent(n int, cp CodePrinter, block func(cp CodePrinter)) {
	cp.Indent(n)
	defer cp.Unindent(n)
	block(cp)
}

type codePrinter struct {
	indent      int
	col         int
	builder     strings.Builder
	linebuilder strings.Builder
}

func (c *codePrinter) Indent(n int) {
	c.indent += n
}

func (c *codePrinter) Unindent(n int) {
	c.indent -= n
	if c.indent < 0 {
		c.indent = 0
	}
}

func (c *codePrinter) Print(str string) {
	lines := strings.Split(str, "\n")
	for idx, l := range lines {
		if c.col == 0 && l != "" {
			// new line has started so add the indent string
			c.linebuilder.WriteString(c.IndentString())
		}
		c.linebuilder.WriteString(l)
		c.col += len(l)
		if idx < len(lines)-1 {
			c.col = 0
			c.builder.WriteString(c.linebuilder.String())
			c.builder.WriteRune('\n')
			c.linebuilder.Reset()
		}
	}
}

func (c *codePrinter) Println(str string) {
	c.Print(str + "\n")
}

func (c *codePrinter) Printf(format string, args ...any) {
	c.Print(fmt.Sprintf(format, args...))
}

func (c *codePrinter) IndentString() string {
	return strings.Repeat("  ", c.indent)
}

func (c *codePrinter) Output() string {
	return c.builder.String() + c.linebuilder.String()
}

func NewCodePrinter() CodePrinter {
	return &codePrinter{}
}

// PrettyPrint writes an indented outline of an engine and its routines.
func PrettyPrint(cp CodePrinter, cfg *EngineConfig) {
	cp.Println(cfg.String())
	WithIndent(1, cp, func(cp CodePrinter) {
		for _, name := range sortedKeys(cfg.Cells) {
			cp.Println(cfg.Cells[name].String())
		}
		for _, name := range sortedKeys(cfg.Pools) {
			cp.Println(cfg.Pools[name].String())
		}
		for _, name := range sortedKeys(cfg.Fcns) {
			cp.Printf("u.%s: ", name)
			printExpr(cp, cfg.Fcns[name])
		}
		for _, routine := range []struct {
			name string
			body []Expr
		}{{"begin", cfg.Begin}, {"action", cfg.Action}, {"end", cfg.End}} {
			if len(routine.body) == 0 {
				continue
			}
			cp.Println(routine.name + ":")
			printBlock(cp, routine.body)
		}
	})
}

func printBlock(cp CodePrinter, body []Expr) {
	WithIndent(1, cp, func(cp CodePrinter) {
		for _, x := range body {
			printExpr(cp, x)
		}
	})
}

func printExpr(cp CodePrinter, x Expr) {
	switch n := x.(type) {
	case *If:
		cp.Printf("if %s:\n", n.Cond)
		printBlock(cp, n.Then)
		if n.Else != nil {
			cp.Println("else:")
			printBlock(cp, n.Else)
		}
	case *Cond:
		for i, c := range n.Ifs {
			kw := "elif"
			if i == 0 {
				kw = "if"
			}
			cp.Printf("%s %s:\n", kw, c.Cond)
			printBlock(cp, c.Then)
		}
		if n.Else != nil {
			cp.Println("else:")
			printBlock(cp, n.Else)
		}
	case *While:
		cp.Printf("while %s:\n", n.Cond)
		printBlock(cp, n.Body)
	case *DoUntil:
		cp.Println("do:")
		printBlock(cp, n.Body)
		cp.Printf("until %s\n", n.Cond)
	case *For:
		cp.Printf("for {%s}; %s; {%s}:\n", describeBindings(n.Init), n.Cond, describeBindings(n.Step))
		printBlock(cp, n.Body)
	case *Foreach:
		cp.Printf("foreach %s in %s:\n", n.Name, n.Array)
		printBlock(cp, n.Body)
	case *Forkeyval:
		cp.Printf("forkeyval %s, %s in %s:\n", n.Key, n.Val, n.Map)
		printBlock(cp, n.Body)
	case *Do:
		cp.Println("do:")
		printBlock(cp, n.Body)
	case *FcnDef:
		cp.Println(n.String() + ":")
		printBlock(cp, n.Body)
	case *CastBlock:
		cp.Printf("cast %s:\n", n.Expr)
		WithIndent(1, cp, func(cp CodePrinter) {
			for _, c := range n.Cases {
				cp.Printf("as %s %s:\n", c.Type, c.Name)
				printBlock(cp, c.Body)
			}
		})
	default:
		cp.Println(x.String())
	}
}

// PPrint writes the outline of an engine to w.
func PPrint(w io.Writer, cfg *EngineConfig) {
	cp := &codePrinter{}
	PrettyPrint(cp, cfg)
	fmt.Fprint(w, cp.Output())
}
