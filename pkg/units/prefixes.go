package units

// Prefix is an SI metric prefix.
type Prefix struct {
	Symbol   string
	Name     string
	Exponent int
	Factor   float64
}

// Prefixes lists the SI prefixes in the order prefixed units are created.
var Prefixes = []Prefix{
	{"Y", "yotta", 24, 1e24},
	{"Z", "zetta", 21, 1e21},
	{"E", "exa", 18, 1e18},
	{"P", "peta", 15, 1e15},
	{"T", "tera", 12, 1e12},
	{"G", "giga", 9, 1e9},
	{"M", "mega", 6, 1e6},
	{"k", "kilo", 3, 1e3},
	{"h", "hecto", 2, 1e2},
	{"da", "deka", 1, 1e1},
	{"d", "deci", -1, 1e-1},
	{"c", "centi", -2, 1e-2},
	{"m", "milli", -3, 1e-3},
	{"u", "micro", -6, 1e-6},
	{"n", "nano", -9, 1e-9},
	{"p", "pico", -12, 1e-12},
	{"f", "femto", -15, 1e-15},
	{"a", "atto", -18, 1e-18},
	{"z", "zepto", -21, 1e-21},
	{"y", "yocto", -24, 1e-24},
}

// PrefixBySymbol returns the prefix with the given symbol.
func PrefixBySymbol(sym string) (Prefix, bool) {
	for _, p := range Prefixes {
		if p.Symbol == sym {
			return p, true
		}
	}
	return Prefix{}, false
}

// PrefixByExponent returns the prefix for a power of ten.
func PrefixByExponent(exp int) (Prefix, bool) {
	for _, p := range Prefixes {
		if p.Exponent == exp {
			return p, true
		}
	}
	return Prefix{}, false
}
