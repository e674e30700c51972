// plugin.go: typed module entry points
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextend

// Provider is the entry point of a module.
//
// The kernel boots in two phases: every prepared module's providers Register
// first, then every module that registered successfully is Booted. Register
// should only bind hooks and namespaces; Boot may rely on other modules having
// registered.
//
// Example usage:
//
//	type MenuProvider struct{}
//
//	func (MenuProvider) Register(k *goextend.Kernel) error {
//	    return k.Hooks().AddAction(goextend.HookAdminMenu, renderMenu)
//	}
//
//	func (MenuProvider) Boot(*goextend.Kernel) error { return nil }
type Provider interface {
	Register(kernel *Kernel) error
	Boot(kernel *Kernel) error
}

// ProviderFuncs adapts plain functions to Provider. Nil functions are no-ops.
type ProviderFuncs struct {
	RegisterFunc func(kernel *Kernel) error
	BootFunc     func(kernel *Kernel) error
}

var _ Provider = ProviderFuncs{}

// Register implements Provider.
func (p ProviderFuncs) Register(kernel *Kernel) error {
	if p.RegisterFunc == nil {
		return nil
	}
	return p.RegisterFunc(kernel)
}

// Boot implements Provider.
func (p ProviderFuncs) Boot(kernel *Kernel) error {
	if p.BootFunc == nil {
		return nil
	}
	return p.BootFunc(kernel)
}

// ThemeInitializer runs once per process the first time its theme loads.
type ThemeInitializer func(kernel *Kernel, theme *LoadedTheme) error
