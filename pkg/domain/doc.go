// Package domain contains the core domain entities and types used by the
// application. These types describe the business concepts of a cookie scan
// (scan results, discovered cookies, scan targets) and are intentionally free
// of infrastructure concerns so they can be shared across packages.
package domain
