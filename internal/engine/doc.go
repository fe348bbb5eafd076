// Package engine runs Pokemon battles.
//
// The Engine builds sessions from trainers' teams, resolves turns through the
// Calculator and keeps live sessions in a Registry that serialises every
// action on one battle. Finished battles are handed to a BattleSink and every
// state change is appended to the event log. Ghost battles are resolved in a
// single call and never enter the registry.
package engine
