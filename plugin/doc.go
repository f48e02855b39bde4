// Package plugin defines the boundary between the rendering engine and
// effect units.
//
// A [Host] lists available plugins and instantiates a [Unit] by ID. Units
// are configured once with a [Format] and a maximum chunk size, then pull
// input from a [Source] on every [Unit.Render] call and report a [Status].
// Units that load a model file additionally implement [FileLoader].
//
// [Registry] is an in-process Host backed by factories; package builtin
// registers the plugins shipped with this module.
package plugin
