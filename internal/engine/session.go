package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/MRamiBalles/PokeArena/server/internal/domain/battle"
	"github.com/MRamiBalles/PokeArena/server/internal/domain/combatant"
	"github.com/MRamiBalles/PokeArena/server/internal/domain/element"
	"github.com/MRamiBalles/PokeArena/server/internal/domain/weather"
	apperrors "github.com/MRamiBalles/PokeArena/server/internal/platform/errors"
)

// AutomatedOpponent is the opponent id of a battle against the house roster.
const AutomatedOpponent = 0

// Side names a participant of a battle.
type Side string

const (
	SidePlayer   Side = "player"
	SideOpponent Side = "opponent"
	SideDraw     Side = "draw"
)

// AttackEvent describes one hit inside a turn.
type AttackEvent struct {
	AttackerName     string   `json:"attacker_name"`
	AttackerIsPlayer bool     `json:"attacker_is_player"`
	DefenderName     string   `json:"defender_name"`
	DefenderIsPlayer bool     `json:"defender_is_player"`
	MoveName         string   `json:"move_name,omitempty"`
	Damage           int      `json:"damage"`
	DefenderHPBefore int      `json:"defender_hp_before"`
	DefenderHPAfter  int      `json:"defender_hp_after"`
	DefenderMaxHP    int      `json:"defender_max_hp"`
	IsKO             bool     `json:"is_ko"`
	NextName         string   `json:"next_pokemon_name,omitempty"`
	Logs             []string `json:"logs"`
}

// TurnResult is what the client animates after an action.
type TurnResult struct {
	FirstAttack  *AttackEvent `json:"first_attack"`
	SecondAttack *AttackEvent `json:"second_attack"`
	BattleEnded  bool         `json:"battle_ended"`
	Winner       Side         `json:"winner,omitempty"`
}

// BattleSession is one live interactive battle.
// It is not safe for concurrent use; the Registry serialises access.
type BattleSession struct {
	ID             string
	PlayerID       int
	OpponentID     int
	Automated      bool
	Player         combatant.Roster
	Opponent       combatant.Roster
	PlayerTeamID   int64
	OpponentTeamID int64
	Weather        weather.Condition
	Turn           int
	Logs           []string
	Finished       bool
	Winner         Side
	PlayerFirst    bool
	LastTurn       *TurnResult
	HackAttemptID  string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewSession opens a battle. Both rosters must be non-empty.
func NewSession(playerID, opponentID int, player, opponent combatant.Roster, cond weather.Condition, now time.Time) *BattleSession {
	s := &BattleSession{
		ID:         uuid.NewString(),
		PlayerID:   playerID,
		OpponentID: opponentID,
		Automated:  opponentID == AutomatedOpponent,
		Player:     player,
		Opponent:   opponent,
		Weather:    cond,
		Turn:       1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.log("The battle begins!")
	s.log(shout(s.Player.Active().Name) + " enters!")
	s.log(shout(s.Opponent.Active().Name) + " enters!")
	return s
}

// shout renders a combatant name the way the battle log prints it.
func shout(name string) string {
	return cases.Upper(language.English).String(name)
}

func (s *BattleSession) log(lines ...string) {
	s.Logs = append(s.Logs, lines...)
}

func (s *BattleSession) roster(side Side) *combatant.Roster {
	if side == SidePlayer {
		return &s.Player
	}
	return &s.Opponent
}

func other(side Side) Side {
	if side == SidePlayer {
		return SideOpponent
	}
	return SidePlayer
}

// finish closes the battle with the given winner.
func (s *BattleSession) finish(winner Side) {
	s.Finished = true
	s.Winner = winner
	switch winner {
	case SidePlayer:
		s.log("VICTORY! All opposing combatants are KO!")
	case SideOpponent:
		s.log("DEFEAT! All your combatants are KO!")
	}
}

// pickMove chooses a random usable move for c, or -1 for the default attack.
func pickMove(d *Dice, c *combatant.Combatant) int {
	usable := c.UsableMoves()
	if len(usable) == 0 {
		return -1
	}
	return usable[d.IntN(len(usable))]
}

// strike resolves one hit from the active combatant of side onto the other side.
// moveIndex -1 is the default attack. The opponent side auto-swaps on KO;
// the player side waits for a forced switch.
func (s *BattleSession) strike(calc *Calculator, side Side, moveIndex int, opener string) *AttackEvent {
	att := s.roster(side).Active()
	defRoster := s.roster(other(side))
	def := defRoster.Active()

	power, moveName := DefaultMovePower, ""
	var moveType element.Type
	if moveIndex >= 0 {
		m := &att.Moves[moveIndex]
		if side == SideOpponent {
			m.CurrentPP--
		}
		power, moveType, moveName = m.Power, m.Type, m.Name
	}

	dmg := calc.Compute(att, def, s.Weather, power, moveType)
	before, after := def.ApplyDamage(dmg)

	ev := &AttackEvent{
		AttackerName:     att.Name,
		AttackerIsPlayer: side == SidePlayer,
		DefenderName:     def.Name,
		DefenderIsPlayer: side != SidePlayer,
		MoveName:         moveName,
		Damage:           dmg,
		DefenderHPBefore: before,
		DefenderHPAfter:  after,
		DefenderMaxHP:    def.MaxHP,
		IsKO:             after == 0,
	}

	switch {
	case opener != "":
		ev.Logs = append(ev.Logs, opener)
	case moveName != "":
		ev.Logs = append(ev.Logs, fmt.Sprintf("%s uses %s!", shout(att.Name), moveName))
	default:
		ev.Logs = append(ev.Logs, shout(att.Name)+" attacks!")
	}
	ev.Logs = append(ev.Logs, fmt.Sprintf("%s loses %d HP", shout(def.Name), dmg))

	if ev.IsKO {
		ev.Logs = append(ev.Logs, shout(def.Name)+" is KO!")
		if side == SidePlayer {
			if i, ok := defRoster.FirstLiving(); ok {
				defRoster.SetActive(i)
				ev.NextName = defRoster.Active().Name
				ev.Logs = append(ev.Logs, shout(ev.NextName)+" enters!")
			}
		}
	}
	s.log(ev.Logs...)

	if defRoster.AllFainted() {
		s.finish(side)
	}
	return ev
}

// Attack resolves a full turn: the player's chosen move and the opponent's reply.
func (s *BattleSession) Attack(calc *Calculator, moveIndex int, now time.Time) (*TurnResult, error) {
	if s.Finished {
		return nil, apperrors.RuleViolation("battle is already finished")
	}
	player := s.Player.Active()
	if moveIndex < 0 || moveIndex >= len(player.Moves) {
		return nil, apperrors.Validation("invalid move")
	}
	if !player.Moves[moveIndex].Usable() {
		return nil, apperrors.RuleViolation("no PP left for this move")
	}
	if player.Fainted() {
		return nil, apperrors.RuleViolation("switch required")
	}

	player.Moves[moveIndex].CurrentPP--

	opp := s.Opponent.Active()
	s.PlayerFirst = player.Stats.Speed >= opp.Stats.Speed
	oppMove := pickMove(calc.dice, opp)

	result := &TurnResult{}
	if s.PlayerFirst {
		result.FirstAttack = s.strike(calc, SidePlayer, moveIndex, "")
		if !s.Finished && !result.FirstAttack.IsKO {
			result.SecondAttack = s.strike(calc, SideOpponent, oppMove, "")
		}
	} else {
		result.FirstAttack = s.strike(calc, SideOpponent, oppMove, "")
		if !s.Finished && !result.FirstAttack.IsKO {
			result.SecondAttack = s.strike(calc, SidePlayer, moveIndex, "")
		}
	}
	result.BattleEnded = s.Finished
	result.Winner = s.Winner

	s.LastTurn = result
	s.Turn++
	s.UpdatedAt = now
	return result, nil
}

// Switch brings a benched combatant in. A voluntary switch of a healthy
// combatant gives the opponent a free hit on the newcomer.
func (s *BattleSession) Switch(calc *Calculator, slotID int, forced bool, now time.Time) (*TurnResult, error) {
	if s.Finished {
		return nil, apperrors.RuleViolation("battle is already finished")
	}
	i, ok := s.Player.Find(slotID)
	if !ok {
		return nil, apperrors.Validation("unknown combatant")
	}
	target := &s.Player.Members[i]
	if target.Fainted() {
		return nil, apperrors.RuleViolation("combatant is KO")
	}
	if i == s.Player.ActiveIndex() {
		return nil, apperrors.RuleViolation("combatant is already in play")
	}

	prev := s.Player.Active()
	wasKO := prev.Fainted()
	s.log(shout(prev.Name) + " comes back!")
	s.Player.SetActive(i)
	s.log(shout(target.Name) + " enters!")

	s.LastTurn = nil
	if !forced && !wasKO {
		opp := s.Opponent.Active()
		idx := pickMove(calc.dice, opp)
		opener := shout(opp.Name) + " takes advantage of the switch to attack!"
		if idx >= 0 {
			opener = fmt.Sprintf("%s takes advantage of the switch to use %s!", shout(opp.Name), opp.Moves[idx].Name)
		}
		ev := s.strike(calc, SideOpponent, idx, opener)
		s.LastTurn = &TurnResult{FirstAttack: ev, BattleEnded: s.Finished, Winner: s.Winner}
	}

	s.Turn++
	s.UpdatedAt = now
	return s.LastTurn, nil
}

// Flee forfeits the battle.
func (s *BattleSession) Flee(now time.Time) error {
	if s.Finished {
		return apperrors.RuleViolation("battle is already finished")
	}
	s.Finished = true
	s.Winner = SideOpponent
	s.log("You fled the battle!", "DEFEAT by forfeit!")
	s.UpdatedAt = now
	return nil
}

// Clone returns a deep copy safe to hand out of the registry.
func (s *BattleSession) Clone() *BattleSession {
	cp := *s
	cp.Player = s.Player.Clone()
	cp.Opponent = s.Opponent.Clone()
	cp.Logs = append([]string(nil), s.Logs...)
	if s.LastTurn != nil {
		lt := *s.LastTurn
		lt.FirstAttack = lt.FirstAttack.clone()
		lt.SecondAttack = lt.SecondAttack.clone()
		cp.LastTurn = &lt
	}
	return &cp
}

func (e *AttackEvent) clone() *AttackEvent {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Logs = append([]string(nil), e.Logs...)
	return &cp
}

// Record builds the persistence row for a finished battle. For automated
// battles the opponent mirrors the player and a player loss stores no winner.
func (s *BattleSession) Record() battle.Record {
	r := battle.Record{
		AttackerID:     s.PlayerID,
		DefenderID:     s.OpponentID,
		AttackerTeamID: s.PlayerTeamID,
		DefenderTeamID: s.OpponentTeamID,
		Ghost:          s.Automated,
		Log: battle.SessionLog{
			BattleID: s.ID,
			Turn:     s.Turn,
			Weather:  string(s.Weather),
			Logs:     append([]string(nil), s.Logs...),
			Turns: []battle.Remaining{{
				AttackerRemaining: s.Player.Living(),
				DefenderRemaining: s.Opponent.Living(),
			}},
		},
		CreatedAt: s.UpdatedAt,
	}
	if s.Automated {
		r.DefenderID = s.PlayerID
		r.DefenderTeamID = s.PlayerTeamID
	}
	switch s.Winner {
	case SidePlayer:
		id := s.PlayerID
		r.WinnerID = &id
	case SideOpponent:
		if !s.Automated {
			id := s.OpponentID
			r.WinnerID = &id
		}
	}
	return r
}

// SessionView is the JSON shape of a session returned to clients.
type SessionView struct {
	BattleID               string                `json:"battle_id"`
	PlayerID               int                   `json:"player_id"`
	OpponentID             int                   `json:"opponent_id"`
	IsAI                   bool                  `json:"is_ai"`
	PlayerTeam             []combatant.Combatant `json:"player_team"`
	OpponentTeam           []combatant.Combatant `json:"opponent_team"`
	CurrentPlayerPokemon   combatant.Combatant   `json:"current_player_pokemon"`
	CurrentOpponentPokemon combatant.Combatant   `json:"current_opponent_pokemon"`
	Weather                weather.Condition     `json:"weather"`
	Turn                   int                   `json:"turn"`
	Logs                   []string              `json:"battle_logs"`
	Finished               bool                  `json:"is_finished"`
	Winner                 Side                  `json:"winner,omitempty"`
	PlayerAttackedFirst    bool                  `json:"player_attacked_first"`
	TurnResult             *TurnResult           `json:"turn_result,omitempty"`
	HackAttemptID          string                `json:"hack_attempt_id,omitempty"`
}

// View renders the session for clients. The result shares nothing with s.
func (s *BattleSession) View() SessionView {
	cp := s.Clone()
	return SessionView{
		BattleID:               cp.ID,
		PlayerID:               cp.PlayerID,
		OpponentID:             cp.OpponentID,
		IsAI:                   cp.Automated,
		PlayerTeam:             cp.Player.Members,
		OpponentTeam:           cp.Opponent.Members,
		CurrentPlayerPokemon:   *cp.Player.Active(),
		CurrentOpponentPokemon: *cp.Opponent.Active(),
		Weather:                cp.Weather,
		Turn:                   cp.Turn,
		Logs:                   cp.Logs,
		Finished:               cp.Finished,
		Winner:                 cp.Winner,
		PlayerAttackedFirst:    cp.PlayerFirst,
		TurnResult:             cp.LastTurn,
		HackAttemptID:          cp.HackAttemptID,
	}
}
