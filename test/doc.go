// Package test holds end-to-end scenarios that run the Provider and the HTTP
// layer over every backend combination.
//
//	go test -tags integration ./test
//
// Postgres combinations additionally need AUTHCORE_INTEGRATION=1 and a
// container runtime.
package test
