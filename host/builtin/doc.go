// Package builtin provides the plugins compiled into the host: Gain, Delay,
// Peak Meter and Spectrum Analyzer, exposed through a plugin.Format named
// "builtin".
//
// Every plugin keeps its parameters in atomics so a control goroutine can
// change them while the audio goroutine processes. Parameter values are the
// plugin state saved with a chain:
//
//	reg := plugin.NewRegistry()
//	reg.MustRegister(builtin.NewFormat())
//
//	d, _ := builtin.Descriptor("gain")
//	p, _ := reg.Instantiate(d, 48000, 512)
//	_ = p.(*builtin.Gain).SetParam("gain_db", -6)
package builtin
