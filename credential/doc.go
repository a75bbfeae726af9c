// Package credential stores users and verifies their passwords.
//
// [Store] is implemented in memory here and by the relational backends in
// credential/postgres and credential/sqlite. All backends share [Verifier], so
// unknown usernames, wrong passwords and disabled accounts are handled the
// same way: CheckPassword returns a nil user and no error, and spends the same
// hashing work in each case.
package credential
