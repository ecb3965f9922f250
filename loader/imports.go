package loader

import "github.com/panyam/pfa/decl"

type Env[T any] = decl.Env[T]
type NodeInfo = decl.NodeInfo
type Expr = decl.Expr
type Type = decl.Type
type TypeDecl = decl.TypeDecl
type Binding = decl.Binding
type EngineConfig = decl.EngineConfig
type PathStep = decl.PathStep
type Value = decl.Value
