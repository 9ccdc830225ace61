// Package http implements the HTTP transport layer of the application.
//
// It exposes route wiring, request handlers, and middleware for the
// card-payment surface: NTAG lifecycle, scan/pay dispatch, the encrypted
// config channel, and admin reset. Cross-cutting concerns such
// as request tracing, access logging, response compression, and
// method-not-allowed hiding are handled in this package before requests
// are delegated to the domain packages.
package http
