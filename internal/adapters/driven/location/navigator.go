package location

import (
	"fmt"
	"io"
	"sync"

	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

// Ensure the navigators implement the interface.
var (
	_ driven.Navigator = (*PrintNavigator)(nil)
	_ driven.Navigator = NavigatorFunc(nil)
)

// PrintNavigator tells a terminal user where to log in. Repeated redirects
// print once.
type PrintNavigator struct {
	w    io.Writer
	once sync.Once
}

// NewPrintNavigator creates a navigator writing to w.
func NewPrintNavigator(w io.Writer) *PrintNavigator {
	return &PrintNavigator{w: w}
}

// RedirectToLogin prints the login hint.
func (n *PrintNavigator) RedirectToLogin(target string) {
	n.once.Do(func() {
		if target == "" {
			fmt.Fprintln(n.w, "Not logged in. Run 'sercha-connect session set' first.")
			return
		}
		fmt.Fprintf(n.w, "Not logged in. Log in at %s, then run 'sercha-connect session set'.\n", target)
	})
}

// NavigatorFunc adapts a function to driven.Navigator.
type NavigatorFunc func(target string)

// RedirectToLogin calls f.
func (f NavigatorFunc) RedirectToLogin(target string) {
	f(target)
}
