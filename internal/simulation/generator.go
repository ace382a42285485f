// Package simulation drives the decision pipeline over labelled synthetic
// traffic to estimate how a policy behaves before it is deployed.
package simulation

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/mbd888/fraudgate/internal/event"
	"github.com/mbd888/fraudgate/internal/policy"
)

// StartTS is the timestamp of the first generated event; each following
// event is TSStep seconds later.
const (
	StartTS = 1_700_000_000
	TSStep  = 5
)

var safeMessages = []string{
	"Hi, I want to buy this item.",
	"Can you confirm delivery date?",
	"Thanks for the quick response.",
	"Please share pickup details.",
	"Payment completed through marketplace checkout.",
}

var riskMessages = []string{
	"Pay me directly and I will ship now.",
	"Urgent transfer needed, send card details.",
	"Click this link to verify your account.",
	"Your account is blocked, share OTP immediately.",
	"I can offer discount outside platform.",
}

// Countries is the pool event countries are drawn from.
var Countries = []string{"US", "DE", "PL", "UA", "GB", "NG", "RU", "BR"}

// Entity pool sizes.
const (
	userPool     = 400
	devicePool   = 250
	ipPool       = 300
	cardPool     = 500
	merchantPool = 60
)

// LabeledEvent is a synthetic event with its ground-truth fraud label.
type LabeledEvent struct {
	event.Event
	IsFraud bool `json:"is_fraud"`
}

// Generate returns n synthetic events. The same seed always yields the same
// events.
func Generate(n int, seed uint64) []LabeledEvent {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	highRisk := make(map[string]bool, len(policy.DefaultHighRiskCountries))
	for _, c := range policy.DefaultHighRiskCountries {
		highRisk[c] = true
	}

	out := make([]LabeledEvent, 0, n)
	for i := 0; i < n; i++ {
		latent := clamp(beta(r, 2, 5)+r.NormFloat64()*0.08, 0, 1)
		risky := latent > 0.5 || r.Float64() < 0.12

		ev := event.Event{
			Country:           Countries[r.IntN(len(Countries))],
			UserID:            fmt.Sprintf("user_%04d", r.IntN(userPool)),
			DeviceID:          fmt.Sprintf("device_%04d", r.IntN(devicePool)),
			IPID:              fmt.Sprintf("ip_%04d", r.IntN(ipPool)),
			CardID:            fmt.Sprintf("card_%04d", r.IntN(cardPool)),
			MerchantID:        fmt.Sprintf("merchant_%03d", r.IntN(merchantPool)),
			PaymentAttempts:   poisson(r, 2+latent*3),
			AccountAgeDays:    max(1, int(gamma(r, 4.5, 25)*(1.1-latent))),
			DeviceReuseCount:  poisson(r, 1.5+latent*4),
			ChargebackHistory: boolToInt(r.Float64() < 0.06+0.4*latent),
			EventTS:           float64(StartTS + i*TSStep),
		}
		if risky {
			ev.MessageText = riskMessages[r.IntN(len(riskMessages))]
		} else {
			ev.MessageText = safeMessages[r.IntN(len(safeMessages))]
		}

		boost := 0.0
		if highRisk[ev.Country] {
			boost += 0.16
		}
		if ev.PaymentAttempts >= 4 {
			boost += 0.08
		}
		if ev.AccountAgeDays < 7 {
			boost += 0.12
		}
		if ev.DeviceReuseCount >= 4 {
			boost += 0.1
		}
		if risky {
			boost += 0.18
		}
		if ev.ChargebackHistory == 1 {
			boost += 0.22
		}
		fraudProb := clamp(latent*0.6+boost, 0, 1)

		out = append(out, LabeledEvent{Event: ev, IsFraud: r.Float64() < fraudProb})
	}
	return out
}

// gamma samples Gamma(shape, scale) (Marsaglia and Tsang).
func gamma(r *rand.Rand, shape, scale float64) float64 {
	if shape < 1 {
		return gamma(r, shape+1, scale) * math.Pow(r.Float64(), 1/shape)
	}
	d := shape - 1.0/3
	c := 1 / math.Sqrt(9*d)
	for {
		x := r.NormFloat64()
		v := 1 + c*x
		if v <= 0 {
			continue
		}
		v = v * v * v
		u := r.Float64()
		if u < 1-0.0331*x*x*x*x || math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v * scale
		}
	}
}

func beta(r *rand.Rand, a, b float64) float64 {
	x := gamma(r, a, 1)
	y := gamma(r, b, 1)
	return x / (x + y)
}

// poisson samples Poisson(lambda) by multiplication (Knuth); lambda stays
// small here.
func poisson(r *rand.Rand, lambda float64) int {
	limit := math.Exp(-lambda)
	k := 0
	p := r.Float64()
	for p > limit {
		k++
		p *= r.Float64()
	}
	return k
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
