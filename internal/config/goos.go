package config

import "runtime"

var goos = runtime.GOOS
