// Package shared holds code used across optpricer packages that belongs to no single
// layer. Its testutil subpackage provides log capture and row fixtures for tests.
package shared
