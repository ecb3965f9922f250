package runtime

import (
	"github.com/panyam/pfa/decl"
)

type Expr = decl.Expr
type Env[T any] = decl.Env[T]
type Binding = decl.Binding
type PathStep = decl.PathStep
type EngineConfig = decl.EngineConfig
type Type = decl.Type
type Value = decl.Value
