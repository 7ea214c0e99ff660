// Package deps checks the external binaries the engine shells out to.
package deps
