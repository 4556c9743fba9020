package vconn

import "errors"

// ErrDoubleBind is returned by Attach when a transport is already bound.
var ErrDoubleBind = errors.New("vconn: transport already attached")

// ErrClosed is returned by operations attempted after Close.
var ErrClosed = errors.New("vconn: connection closed")
