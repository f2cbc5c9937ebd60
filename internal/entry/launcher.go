package entry

import (
	"context"
	"fmt"
	"strings"
)

type Platform string

const (
	Android Platform = "android"
	IOS     Platform = "ios"
)

// ParsePlatform accepts "android" or "ios" in any case.
func ParsePlatform(s string) (Platform, error) {
	switch p := Platform(strings.ToLower(strings.TrimSpace(s))); p {
	case Android, IOS:
		return p, nil
	default:
		return "", fmt.Errorf("unknown platform %q", s)
	}
}

const (
	intentActionView      = "android.intent.action.VIEW"
	flagActivityNewTask   = "FLAG_ACTIVITY_NEW_TASK"
	flagActivitySingleTop = "FLAG_ACTIVITY_SINGLE_TOP"
)

// LaunchTarget describes how to open a payment app on one platform.
// Android targets carry an intent; iOS targets carry a deep-link URL.
type LaunchTarget struct {
	Platform Platform `json:"platform"`
	Action   string   `json:"action,omitempty"`
	Package  string   `json:"package,omitempty"`
	Flags    []string `json:"flags,omitempty"`
	URL      string   `json:"url,omitempty"`
}

// Target returns the launch target of app on p.
func (app PaymentApp) Target(p Platform) LaunchTarget {
	if p == IOS {
		return LaunchTarget{Platform: IOS, URL: app.URLScheme + "://"}
	}
	return LaunchTarget{
		Platform: Android,
		Action:   intentActionView,
		Package:  app.Package,
		Flags:    []string{flagActivityNewTask, flagActivitySingleTop},
	}
}

// Launcher opens an external app. Launches are best effort: the caller
// never waits for payment confirmation. With no Launcher configured the
// machine launches nothing; the server and CLI run that way and hand the
// LaunchTarget back to the client instead.
type Launcher interface {
	Launch(ctx context.Context, target LaunchTarget) error
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(ctx context.Context, target LaunchTarget) error

func (f LauncherFunc) Launch(ctx context.Context, target LaunchTarget) error {
	return f(ctx, target)
}

type nopLauncher struct{}

func (nopLauncher) Launch(context.Context, LaunchTarget) error { return nil }
