package config

import "errors"

// ErrConfig marks configuration errors. They are fatal at startup and
// surface through the CLI exit code before any window is opened.
var ErrConfig = errors.New("invalid configuration")
