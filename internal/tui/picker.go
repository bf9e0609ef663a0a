package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"sharkemon/internal/capture"
)

var ErrNoInterfaces = errors.New("no capture interfaces found")

// PickInterface asks which interface to capture on.
func PickInterface(ifaces []capture.Interface) (string, error) {
	if len(ifaces) == 0 {
		return "", ErrNoInterfaces
	}
	choice := ifaces[0].Name
	err := huh.NewSelect[string]().
		Title("Choose a network interface").
		Description("Saved to your config; change it later with -i.").
		Options(interfaceOptions(ifaces)...).
		Value(&choice).
		WithTheme(huh.ThemeBase16()).
		Run()
	if err != nil {
		return "", err
	}
	return choice, nil
}

func interfaceOptions(ifaces []capture.Interface) []huh.Option[string] {
	opts := make([]huh.Option[string], 0, len(ifaces))
	for _, iface := range ifaces {
		opts = append(opts, huh.NewOption(interfaceLabel(iface), iface.Name))
	}
	return opts
}

func interfaceLabel(iface capture.Interface) string {
	label := iface.Name
	if iface.Description != "" {
		label += " - " + iface.Description
	}
	if len(iface.Addresses) > 0 {
		addrs := make([]string, len(iface.Addresses))
		for i, a := range iface.Addresses {
			addrs[i] = a.String()
		}
		label += " [" + strings.Join(addrs, ", ") + "]"
	} else {
		label += " (no address)"
	}
	return label
}

// ConfirmReset asks before the ledger is wiped.
func ConfirmReset(discovered int) (bool, error) {
	var ok bool
	err := huh.NewConfirm().
		Title(fmt.Sprintf("Forget all %d discoveries?", discovered)).
		Description("This deletes the discovery ledger and cannot be undone.").
		Affirmative("Reset").
		Negative("Keep").
		Value(&ok).
		WithTheme(huh.ThemeBase16()).
		Run()
	return ok, err
}
