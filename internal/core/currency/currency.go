// Package currency implements the currency/unit/amount model: a
// currency identified by UIDS, units at an integer decimal offset from
// a currency's base unit, and signed amounts that refuse to mix units
// across currencies.
package currency

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/klingon-exchange/walletcore/pkg/helpers"
)

// Currency is identified by UIDS; Name/Code/Type/Issuer are descriptive
// only — identity comparisons use UIDS alone.
type Currency struct {
	UIDS string
	Name string
	Code string
	Type string
	Issuer string // optional, empty if none
}

// Equal compares currencies by UIDS identity.
func (c Currency) Equal(o Currency) bool { return c.UIDS == o.UIDS }

// Unit belongs to a Currency and carries an integer decimal offset from
// that currency's base unit (offset 0 == base unit itself).
type Unit struct {
	Currency Currency
	Name string
	Code string
	Symbol string
	Decimals int32
}

// Compatible reports whether two units can be combined arithmetically
// (same owning currency).
func (u Unit) Compatible(o Unit) bool { return u.Currency.Equal(o.Currency) }

// Base returns a unit representing the currency's base (decimals == 0).
func Base(c Currency, name, code, symbol string) Unit {
	return Unit{Currency: c, Name: name, Code: code, Symbol: symbol, Decimals: 0}
}

// ErrIncompatibleUnits is returned by Amount arithmetic across currencies.
var ErrIncompatibleUnits = fmt.Errorf("currency: incompatible units")

// Amount is an unsigned integer value, a sign flag, and the unit it is
// denominated in.
type Amount struct {
	Value *big.Int // unsigned magnitude
	Negative bool
	Unit Unit
}

// Zero returns a zero-valued amount in the given unit.
func Zero(u Unit) Amount { return Amount{Value: big.NewInt(0), Unit: u} }

// FromBase constructs an amount expressed directly in the currency's
// smallest unit (no decimal scaling).
func FromBase(v *big.Int, negative bool, u Unit) Amount {
	mag := new(big.Int).Abs(v)
	return Amount{Value: mag, Negative: negative && mag.Sign() != 0, Unit: u}
}

// signed returns the amount as a signed big.Int; a nil Value counts as
// zero, as in IsZero.
func (a Amount) signed() *big.Int {
	v := new(big.Int)
	if a.Value != nil {
		v.Set(a.Value)
	}
	if a.Negative {
		v.Neg(v)
	}
	return v
}

// scaledToBase converts the amount's magnitude into the currency's base
// unit by multiplying by 10^Decimals.
func (a Amount) scaledToBase() *big.Int {
	v := new(big.Int).Set(a.signed())
	if a.Unit.Decimals == 0 {
		return v
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(a.Unit.Decimals)), nil)
	return v.Mul(v, scale)
}

// Add returns a + o, both expressed in a's unit. Fails if the units belong
// to different currencies.
func (a Amount) Add(o Amount) (Amount, error) {
	if !a.Unit.Compatible(o.Unit) {
		return Amount{}, ErrIncompatibleUnits
	}
	sum := new(big.Int).Add(a.scaledToBase(), o.scaledToBase())
	return fromBaseScaled(sum, a.Unit), nil
}

// Sub returns a - o, both expressed in a's unit. Fails if the units belong
// to different currencies.
func (a Amount) Sub(o Amount) (Amount, error) {
	if !a.Unit.Compatible(o.Unit) {
		return Amount{}, ErrIncompatibleUnits
	}
	diff := new(big.Int).Sub(a.scaledToBase(), o.scaledToBase())
	return fromBaseScaled(diff, a.Unit), nil
}

// fromBaseScaled rebuilds an Amount in unit u from a base-unit-scaled
// signed big.Int.
func fromBaseScaled(baseScaled *big.Int, u Unit) Amount {
	v := new(big.Int).Set(baseScaled)
	if u.Decimals != 0 {
		scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(u.Decimals)), nil)
		v.Quo(v, scale)
	}
	neg := v.Sign() < 0
	return Amount{Value: new(big.Int).Abs(v), Negative: neg, Unit: u}
}

// Compare returns -1, 0, +1 comparing a to o (same convention as
// big.Int.Cmp). Fails if the units belong to different currencies.
func (a Amount) Compare(o Amount) (int, error) {
	if !a.Unit.Compatible(o.Unit) {
		return 0, ErrIncompatibleUnits
	}
	return a.scaledToBase().Cmp(o.scaledToBase()), nil
}

// IsZero reports whether the amount's magnitude is zero.
func (a Amount) IsZero() bool { return a.Value == nil || a.Value.Sign() == 0 }

// String renders the amount in its unit (integer part only; DecimalString
// renders it with a decimal point).
func (a Amount) String() string {
	sign := ""
	if a.Negative && !a.IsZero() {
		sign = "-"
	}
	return fmt.Sprintf("%s%s %s", sign, a.Value.String(), a.Unit.Symbol)
}

// DecimalString renders a base-unit amount (Unit.Decimals == 0, e.g. a
// satoshi count) as a decimal string scaled by display's decimal offset
// (e.g. "1.00021 BTC"), via pkg/helpers' decimal codec. a and display
// must belong to the same currency.
func (a Amount) DecimalString(display Unit) (string, error) {
	if a.Unit.Decimals != 0 {
		return "", fmt.Errorf("currency: DecimalString requires a base-unit amount")
	}
	if !a.Unit.Compatible(display) {
		return "", ErrIncompatibleUnits
	}
	if !a.Value.IsUint64() {
		return "", fmt.Errorf("currency: amount overflows uint64 for decimal formatting")
	}
	s := helpers.FormatAmount(a.Value.Uint64(), uint8(display.Decimals))
	if a.Negative && !a.IsZero() {
		s = "-" + s
	}
	return fmt.Sprintf("%s %s", s, display.Symbol), nil
}

// AmountFromDecimalString parses a human decimal string denominated in
// display (e.g. "1.5" BTC) into an Amount expressed in display's
// currency base unit, via pkg/helpers' decimal codec.
func AmountFromDecimalString(s string, display Unit) (Amount, error) {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	base, err := helpers.ParseAmount(s, uint8(display.Decimals))
	if err != nil {
		return Amount{}, err
	}
	baseUnit := Unit{Currency: display.Currency}
	return FromBase(new(big.Int).SetUint64(base), neg, baseUnit), nil
}

// Association binds a Currency to a base unit, a default unit, and the set
// of all known display units.
type Association struct {
	Currency Currency
	BaseUnit Unit
	DefaultUnit Unit
	Units []Unit // includes BaseUnit and DefaultUnit
}

// Denomination describes one display unit shipped in a currency bundle.
type Denomination struct {
	Name string
	Code string
	Symbol string
	Decimals int32
}

// ResolveAssociation applies the resolution rules to build an
// Association from a currency id/name/code and its shipped denominations.
// existing, if non-nil, is returned unchanged (bundles never overwrite).
func ResolveAssociation(existing *Association, id, name, code, ctype, issuer string, denoms []Denomination) Association {
	if existing != nil {
		return *existing
	}

	cur := Currency{UIDS: id, Name: name, Code: code, Type: ctype, Issuer: issuer}

	var baseDenom *Denomination
	for i := range denoms {
		if denoms[i].Decimals == 0 {
			baseDenom = &denoms[i]
			break
		}
	}

	var base Unit
	if baseDenom != nil {
		base = Unit{Currency: cur, Name: baseDenom.Name, Code: baseDenom.Code, Symbol: baseDenom.Symbol, Decimals: 0}
	} else {
		base = Unit{
			Currency: cur,
			Name: name + " INT",
			Code: code + "i",
			Symbol: upper(code) + "I",
			Decimals: 0,
		}
	}

	units := []Unit{base}
	best := base
	for _, d := range denoms {
		if baseDenom != nil && d == *baseDenom {
			continue
		}
		u := Unit{Currency: cur, Name: d.Name, Code: d.Code, Symbol: d.Symbol, Decimals: d.Decimals}
		units = append(units, u)
		if u.Decimals > best.Decimals {
			best = u
		}
	}

	return Association{Currency: cur, BaseUnit: base, DefaultUnit: best, Units: units}
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}
