// Package schema checks tables against column schemas written in CUE.
package schema
