package pins

// Address space limits.
const (
	MaxDigital = 64
	MaxAnalog  = 48
)

// target identifies the hardware serving an address.
type target uint8

const (
	none target = iota
	chipA
	chipB
	chipC
	local
	reserved
	mux
	localADC
)

func (t target) String() string {
	switch t {
	case chipA:
		return "expander A"
	case chipB:
		return "expander B"
	case chipC:
		return "expander C"
	case local:
		return "local bank"
	case reserved:
		return "reserved"
	case mux:
		return "analog mux"
	case localADC:
		return "local adc"
	default:
		return "none"
	}
}

// digitalRoute maps a console address to its chip and local index:
//
//	1-16  expander A, index addr-1
//	17-32 expander B, index addr-17
//	33-46 local bank, index addr
//	47-48 reserved, always reads 0
//	49-64 expander C, index addr-49
func digitalRoute(addr int) (target, int) {
	switch {
	case addr >= 1 && addr <= 16:
		return chipA, addr - 1
	case addr >= 17 && addr <= 32:
		return chipB, addr - 17
	case addr >= 33 && addr <= 46:
		return local, addr
	case addr == 47 || addr == 48:
		return reserved, addr
	case addr >= 49 && addr <= 64:
		return chipC, addr - 49
	default:
		return none, 0
	}
}

// analogRoute maps an analog address: 1-16 to mux channel addr-1, 47 and 48
// to local ADC channels 1 and 2.
func analogRoute(addr int) (target, int) {
	switch {
	case addr >= 1 && addr <= 16:
		return mux, addr - 1
	case addr == 47:
		return localADC, 1
	case addr == 48:
		return localADC, 2
	default:
		return none, 0
	}
}

// AnalogAddresses lists every analog address in sampling order.
var AnalogAddresses = []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 47, 48}
