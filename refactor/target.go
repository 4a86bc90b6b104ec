package refactor

import (
	"fmt"

	"github.com/oxhq/pymorph/core"
	"github.com/oxhq/pymorph/internal/transform"
)

// Kind is the variant of a Target.
type Kind string

const (
	KindFile      Kind = "file"
	KindModule    Kind = "module"
	KindPackage   Kind = "package"
	KindClass     Kind = "class"
	KindFunction  Kind = "function"
	KindMethod    Kind = "method"
	KindLine      Kind = "line"
	KindLineBlock Kind = "line_block"
	KindCodeBlock Kind = "code_block"
	KindComment   Kind = "comment"
	KindString    Kind = "string"
	KindImport    Kind = "import"
	KindError     Kind = "error"
)

// Position selects where InsertStatement puts a statement in a body.
type Position = transform.Position

const (
	Start = transform.Start
	End   = transform.End
)

// Param describes a parameter for AddParameter.
type Param = transform.Param

// Target is a handle on one element of the codebase. Every variant
// implements every method: navigation that cannot succeed returns an
// ErrorTarget, and a mutation that cannot succeed returns a failed
// core.Result. Nothing panics and nothing returns nil.
//
// Definition targets are re-resolved on every call, so a Target sees the
// effects of earlier operations. A Target whose element was renamed or
// removed reports Exists() == false.
type Target interface {
	Kind() Kind
	Name() string
	Path() string
	Describe() string
	Exists() bool
	Content() string
	// Err is the reason an ErrorTarget exists; nil for every other kind.
	Err() error

	FindClass(name string) Target
	FindFunction(name string) Target
	FindMethod(name string) Target
	FindModule(name string) Target
	InitFile() Target
	Line(n int) Target
	Lines(start, end int) Target
	BlockAtLine(n int) Target
	ToLineBlock() Target

	FindClasses(pattern string) TargetList
	FindFunctions(pattern string) TargetList
	FindMethods(pattern string) TargetList
	FindComments() TargetList
	FindStrings() TargetList
	FindImports() TargetList

	Rename(newName string) core.Result
	Delete() core.Result
	AddDecorator(decorator string) core.Result
	RemoveDecorator(decorator string) core.Result
	InsertStatement(statement string, pos Position) core.Result
	AddParameter(p Param) core.Result
	RemoveParameter(name string) core.Result
	RenameParameter(old, newName string) core.Result
	SetReturnType(typ string) core.Result
	ReplaceIdentifier(old, replacement string) core.Result

	AddMethod(source string) core.Result
	AddAttribute(name, typ, value string) core.Result
	RemoveAttribute(name string) core.Result
	AddBase(base string) core.Result
	RemoveBase(base string) core.Result

	AddImport(statement string) core.Result
	RemoveImport(module string, names ...string) core.Result
	AddClass(source string) core.Result
	AddFunction(source string) core.Result
	CreateModule(name, content string) core.Result

	Rewrite(content string) core.Result
	InsertBefore(content string) core.Result
	InsertAfter(content string) core.Result
	Replace(pattern, replacement string) core.Result
	Indent(levels int) core.Result
	Dedent(levels int) core.Result
	MoveTo(line int) core.Result

	AddTypeIgnore(code string) core.Result
	AddNoqa(codes ...string) core.Result
	AddNoCover() core.Result
	AddFmtSkip() core.Result

	sealed()
}

// common carries identity and the unsupported defaults. Variants embed it
// and override what their kind supports.
type common struct {
	s     *Session
	kind  Kind
	path  string
	name  string
	label string
}

func (c *common) Kind() Kind       { return c.kind }
func (c *common) Name() string     { return c.name }
func (c *common) Path() string     { return c.path }
func (c *common) Describe() string { return c.label }
func (c *common) Err() error       { return nil }
func (c *common) sealed()          {}

func (c *common) unsupported(op string) core.Result {
	return core.Failed(op, c.label, fmt.Sprintf("operation '%s' not supported for %s", op, c.label), core.ErrUnsupported)
}

func (c *common) unsupportedNav(op string) Target {
	return newErrorTarget(c.path, fmt.Sprintf("operation '%s' not supported for %s", op, c.label), core.ErrUnsupported)
}

func (c *common) unsupportedList(op string) TargetList {
	return TargetList{err: fmt.Errorf("%w: operation '%s' not supported for %s", core.ErrUnsupported, op, c.label)}
}

// errorTarget wraps err for navigation that failed on this target.
func (c *common) errorTarget(err error) Target {
	return newErrorTarget(c.path, err.Error(), err)
}

func (c *common) FindClass(string) Target    { return c.unsupportedNav("find_class") }
func (c *common) FindFunction(string) Target { return c.unsupportedNav("find_function") }
func (c *common) FindMethod(string) Target   { return c.unsupportedNav("find_method") }
func (c *common) FindModule(string) Target   { return c.unsupportedNav("find_module") }
func (c *common) InitFile() Target           { return c.unsupportedNav("init_file") }
func (c *common) Line(int) Target            { return c.unsupportedNav("line") }
func (c *common) Lines(int, int) Target      { return c.unsupportedNav("lines") }
func (c *common) BlockAtLine(int) Target     { return c.unsupportedNav("block_at_line") }
func (c *common) ToLineBlock() Target        { return c.unsupportedNav("to_line_block") }

func (c *common) FindClasses(string) TargetList   { return c.unsupportedList("find_classes") }
func (c *common) FindFunctions(string) TargetList { return c.unsupportedList("find_functions") }
func (c *common) FindMethods(string) TargetList   { return c.unsupportedList("find_methods") }
func (c *common) FindComments() TargetList        { return c.unsupportedList("find_comments") }
func (c *common) FindStrings() TargetList         { return c.unsupportedList("find_strings") }
func (c *common) FindImports() TargetList         { return c.unsupportedList("find_imports") }

func (c *common) Rename(string) core.Result          { return c.unsupported("rename") }
func (c *common) Delete() core.Result                { return c.unsupported("delete") }
func (c *common) AddDecorator(string) core.Result    { return c.unsupported("add_decorator") }
func (c *common) RemoveDecorator(string) core.Result { return c.unsupported("remove_decorator") }
func (c *common) InsertStatement(string, Position) core.Result {
	return c.unsupported("insert_statement")
}
func (c *common) AddParameter(Param) core.Result               { return c.unsupported("add_parameter") }
func (c *common) RemoveParameter(string) core.Result           { return c.unsupported("remove_parameter") }
func (c *common) RenameParameter(string, string) core.Result   { return c.unsupported("rename_parameter") }
func (c *common) SetReturnType(string) core.Result             { return c.unsupported("set_return_type") }
func (c *common) ReplaceIdentifier(string, string) core.Result { return c.unsupported("replace_identifier") }
func (c *common) AddMethod(string) core.Result                 { return c.unsupported("add_method") }
func (c *common) AddAttribute(string, string, string) core.Result {
	return c.unsupported("add_attribute")
}
func (c *common) RemoveAttribute(string) core.Result         { return c.unsupported("remove_attribute") }
func (c *common) AddBase(string) core.Result                 { return c.unsupported("add_base") }
func (c *common) RemoveBase(string) core.Result              { return c.unsupported("remove_base") }
func (c *common) AddImport(string) core.Result               { return c.unsupported("add_import") }
func (c *common) RemoveImport(string, ...string) core.Result { return c.unsupported("remove_import") }
func (c *common) AddClass(string) core.Result                { return c.unsupported("add_class") }
func (c *common) AddFunction(string) core.Result             { return c.unsupported("add_function") }
func (c *common) CreateModule(string, string) core.Result    { return c.unsupported("create_module") }
func (c *common) Rewrite(string) core.Result                 { return c.unsupported("rewrite") }
func (c *common) InsertBefore(string) core.Result            { return c.unsupported("insert_before") }
func (c *common) InsertAfter(string) core.Result             { return c.unsupported("insert_after") }
func (c *common) Replace(string, string) core.Result         { return c.unsupported("replace") }
func (c *common) Indent(int) core.Result                     { return c.unsupported("indent") }
func (c *common) Dedent(int) core.Result                     { return c.unsupported("dedent") }
func (c *common) MoveTo(int) core.Result                     { return c.unsupported("move_to") }
func (c *common) AddTypeIgnore(string) core.Result           { return c.unsupported("add_type_ignore") }
func (c *common) AddNoqa(...string) core.Result              { return c.unsupported("add_noqa") }
func (c *common) AddNoCover() core.Result                    { return c.unsupported("add_no_cover") }
func (c *common) AddFmtSkip() core.Result                    { return c.unsupported("add_fmt_skip") }

// ErrorTarget stands in for an element that could not be resolved. Every
// navigation returns the same ErrorTarget and every mutation fails with
// its reason, so a chain only needs checking at the end.
type ErrorTarget struct {
	path   string
	reason string
	cause  error
}

func newErrorTarget(path, reason string, cause error) *ErrorTarget {
	if cause == nil {
		cause = core.ErrNotFound
	}
	return &ErrorTarget{path: path, reason: reason, cause: cause}
}

// Reason is the human-readable failure.
func (e *ErrorTarget) Reason() string { return e.reason }

func (e *ErrorTarget) Kind() Kind       { return KindError }
func (e *ErrorTarget) Name() string     { return "" }
func (e *ErrorTarget) Path() string     { return e.path }
func (e *ErrorTarget) Describe() string { return "error: " + e.reason }
func (e *ErrorTarget) Exists() bool     { return false }
func (e *ErrorTarget) Content() string  { return "" }
func (e *ErrorTarget) sealed()          {}

func (e *ErrorTarget) Err() error {
	return &core.ResultError{Message: e.reason, Cause: e.cause}
}

func (e *ErrorTarget) fail(op string) core.Result {
	return core.Failed(op, e.Describe(), e.reason, e.cause)
}

func (e *ErrorTarget) empty() TargetList { return TargetList{err: e.Err()} }

func (e *ErrorTarget) FindClass(string) Target    { return e }
func (e *ErrorTarget) FindFunction(string) Target { return e }
func (e *ErrorTarget) FindMethod(string) Target   { return e }
func (e *ErrorTarget) FindModule(string) Target   { return e }
func (e *ErrorTarget) InitFile() Target           { return e }
func (e *ErrorTarget) Line(int) Target            { return e }
func (e *ErrorTarget) Lines(int, int) Target      { return e }
func (e *ErrorTarget) BlockAtLine(int) Target     { return e }
func (e *ErrorTarget) ToLineBlock() Target        { return e }

func (e *ErrorTarget) FindClasses(string) TargetList   { return e.empty() }
func (e *ErrorTarget) FindFunctions(string) TargetList { return e.empty() }
func (e *ErrorTarget) FindMethods(string) TargetList   { return e.empty() }
func (e *ErrorTarget) FindComments() TargetList        { return e.empty() }
func (e *ErrorTarget) FindStrings() TargetList         { return e.empty() }
func (e *ErrorTarget) FindImports() TargetList         { return e.empty() }

func (e *ErrorTarget) Rename(string) core.Result                    { return e.fail("rename") }
func (e *ErrorTarget) Delete() core.Result                          { return e.fail("delete") }
func (e *ErrorTarget) AddDecorator(string) core.Result              { return e.fail("add_decorator") }
func (e *ErrorTarget) RemoveDecorator(string) core.Result           { return e.fail("remove_decorator") }
func (e *ErrorTarget) InsertStatement(string, Position) core.Result { return e.fail("insert_statement") }
func (e *ErrorTarget) AddParameter(Param) core.Result               { return e.fail("add_parameter") }
func (e *ErrorTarget) RemoveParameter(string) core.Result           { return e.fail("remove_parameter") }
func (e *ErrorTarget) RenameParameter(string, string) core.Result   { return e.fail("rename_parameter") }
func (e *ErrorTarget) SetReturnType(string) core.Result             { return e.fail("set_return_type") }
func (e *ErrorTarget) ReplaceIdentifier(string, string) core.Result { return e.fail("replace_identifier") }
func (e *ErrorTarget) AddMethod(string) core.Result                 { return e.fail("add_method") }
func (e *ErrorTarget) AddAttribute(string, string, string) core.Result {
	return e.fail("add_attribute")
}
func (e *ErrorTarget) RemoveAttribute(string) core.Result         { return e.fail("remove_attribute") }
func (e *ErrorTarget) AddBase(string) core.Result                 { return e.fail("add_base") }
func (e *ErrorTarget) RemoveBase(string) core.Result              { return e.fail("remove_base") }
func (e *ErrorTarget) AddImport(string) core.Result               { return e.fail("add_import") }
func (e *ErrorTarget) RemoveImport(string, ...string) core.Result { return e.fail("remove_import") }
func (e *ErrorTarget) AddClass(string) core.Result                { return e.fail("add_class") }
func (e *ErrorTarget) AddFunction(string) core.Result             { return e.fail("add_function") }
func (e *ErrorTarget) CreateModule(string, string) core.Result    { return e.fail("create_module") }
func (e *ErrorTarget) Rewrite(string) core.Result                 { return e.fail("rewrite") }
func (e *ErrorTarget) InsertBefore(string) core.Result            { return e.fail("insert_before") }
func (e *ErrorTarget) InsertAfter(string) core.Result             { return e.fail("insert_after") }
func (e *ErrorTarget) Replace(string, string) core.Result         { return e.fail("replace") }
func (e *ErrorTarget) Indent(int) core.Result                     { return e.fail("indent") }
func (e *ErrorTarget) Dedent(int) core.Result                     { return e.fail("dedent") }
func (e *ErrorTarget) MoveTo(int) core.Result                     { return e.fail("move_to") }
func (e *ErrorTarget) AddTypeIgnore(string) core.Result           { return e.fail("add_type_ignore") }
func (e *ErrorTarget) AddNoqa(...string) core.Result              { return e.fail("add_noqa") }
func (e *ErrorTarget) AddNoCover() core.Result                    { return e.fail("add_no_cover") }
func (e *ErrorTarget) AddFmtSkip() core.Result                    { return e.fail("add_fmt_skip") }
