// Package identity decides who may see which class-log rows.
//
// Credentials live inside the class-log worksheet itself rather than in a
// separate account system: a teacher row carries the teacher's ID, a
// four-digit password and a month, and a student proves identity with an
// ID plus a fragment of their own name. The matchers in this package
// normalize both sides of every comparison, so spreadsheet padding and
// casing never lock anyone out.
//
// Successful logins produce immutable session values held in an
// in-memory Store keyed by opaque tokens.
package identity
