// Copyright (C) 2026, the nuclide authors. All rights reserved.
// See the file LICENSE for licensing terms.

package nuclide

import (
	"net/http"
	"net/url"
)

// Option configures a single HTTP request issued by SendJSONRequest.
type Option func(*Options)

// Options holds per-request HTTP settings.
type Options struct {
	headers     http.Header
	queryParams url.Values
}

// NewOptions applies the given options to a fresh Options value.
func NewOptions(options []Option) *Options {
	o := &Options{
		headers:     http.Header{},
		queryParams: url.Values{},
	}
	for _, opt := range options {
		opt(o)
	}
	return o
}

// WithHeader attaches a header to the request.
func WithHeader(key, val string) Option {
	return func(o *Options) { o.headers.Add(key, val) }
}

// WithQueryParam attaches a query parameter to the request URL.
func WithQueryParam(key, val string) Option {
	return func(o *Options) { o.queryParams.Add(key, val) }
}
