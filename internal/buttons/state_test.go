package buttons

import "testing"

const idle = AllButtons

// settled returns a state that has seen one idle read.
func settled(p Params) State {
	s := NewState(p)
	s, _, _ = s.Next(idle, idle)
	return s
}

// run ticks s n times with idle inputs and collects relay commands and
// state changes.
func run(s State, n int) (State, []RelayCmd, []StateChange) {
	var cmds []RelayCmd
	var changes []StateChange
	for i := 0; i < n; i++ {
		var out Output
		var change StateChange
		s, out, change = s.Next(idle, idle)
		cmds = append(cmds, out.Relays...)
		if change != None {
			changes = append(changes, change)
		}
	}
	return s, cmds, changes
}

func TestNext_FirstTickResyncs(t *testing.T) {
	s := NewState(Params{LightTicks: 300})
	_, out, change := s.Next(idle, idle)
	if change != released(AllButtons) {
		t.Errorf("first tick change = %v, want released(0x0f)", change)
	}
	if out.CodeChanged {
		t.Error("first idle tick reported a keypad code")
	}
	if out.PortA != 0 || out.PortB != 0 {
		t.Errorf("ports = %#02x %#02x, want all dark", out.PortA, out.PortB)
	}
}

func TestNext_Edges(t *testing.T) {
	s := settled(Params{LightTicks: 300})

	steps := []struct {
		name string
		a, b byte
		want StateChange
	}{
		{"idle", idle, idle, None},
		{"bell pressed", idle, idle &^ ButtonBell, pressed(ButtonBell)},
		{"bell held", idle, idle &^ ButtonBell, None},
		{"light pressed while held", idle, idle &^ (ButtonBell | ButtonLight), pressed(ButtonLight)},
		{"both released", idle, idle, released(ButtonBell | ButtonLight)},
		{"idle again", idle, idle, None},
	}

	for _, step := range steps {
		var change StateChange
		s, _, change = s.Next(step.a, step.b)
		if change != step.want {
			t.Fatalf("%s: change = %v, want %v", step.name, change, step.want)
		}
	}
}

func TestNext_PressBeatsRelease(t *testing.T) {
	s := settled(Params{LightTicks: 300})
	s, _, _ = s.Next(idle, idle&^ButtonBell)

	_, _, change := s.Next(idle, idle&^TasterInside)
	if change != pressed(TasterInside) {
		t.Errorf("change = %v, want pressed(TasterInside)", change)
	}
}

func TestNext_KeypadCode(t *testing.T) {
	s := settled(Params{LightTicks: 300})

	s, out, _ := s.Next(0x0e, idle)
	if !out.CodeChanged || out.Code != 0x0e {
		t.Fatalf("out = %+v, want code 0x0e", out)
	}
	if out.PortA&Led1 == 0 {
		t.Error("LED 1 not lit while button 1 is pressed")
	}

	s, out, _ = s.Next(0x0e, idle)
	if out.CodeChanged {
		t.Error("held button reported again")
	}

	_, out, _ = s.Next(0x07, idle)
	if !out.CodeChanged || out.Code != 0x07 {
		t.Errorf("out = %+v, want code 0x07", out)
	}
	if out.PortB&Led4 == 0 {
		t.Error("LED 4 on board B not lit while button 4 is pressed")
	}
}

func TestRingBell_Bench(t *testing.T) {
	s := settled(Params{LightTicks: 300, BellEnabled: true})

	cmds := s.RingBell(2, 5)
	if len(cmds) != 1 || !cmds[0].On || cmds[0].Mask != RelayBell {
		t.Fatalf("RingBell() cmds = %+v", cmds)
	}
	if s.BellCounter != 11 || s.BellInit != 40 {
		t.Fatalf("counter = %d init = %d, want 11 and 40", s.BellCounter, s.BellInit)
	}

	s, got, _ := run(s, 1000)

	if len(got) != 11 {
		t.Fatalf("got %d bell toggles, want 11: %+v", len(got), got)
	}
	for i, cmd := range got {
		wantOn := i%2 == 1
		if cmd.Board != BoardB || cmd.Mask != RelayBell || cmd.On != wantOn {
			t.Errorf("toggle %d = %+v, want on=%v", i, cmd, wantOn)
		}
	}
	if s.BellCounter != 0 || s.Leds.Bell {
		t.Errorf("after ringing: counter = %d led = %v", s.BellCounter, s.Leds.Bell)
	}
}

func TestRingBell_Disabled(t *testing.T) {
	s := settled(Params{LightTicks: 300})

	if cmds := s.RingBell(2, 5); cmds != nil {
		t.Errorf("disabled RingBell() = %+v, want nil", cmds)
	}

	s.RingBellAlarm(20)
	if s.BellCounter != BellForever || s.BellInit != 400 {
		t.Fatalf("alarm: counter = %d init = %d", s.BellCounter, s.BellInit)
	}

	cmds := s.RingBell(2, 5)
	if len(cmds) != 1 || cmds[0].On {
		t.Errorf("RingBell() while alarm = %+v, want bell off", cmds)
	}
	if s.BellCounter != 0 {
		t.Errorf("alarm not cancelled: counter = %d", s.BellCounter)
	}
}

func TestRingBell_Saturates(t *testing.T) {
	s := settled(Params{LightTicks: 300, BellEnabled: true})
	s.RingBell(1<<31, 1<<31)
	if s.BellCounter != BellForever || s.BellInit != BellForever {
		t.Errorf("counter = %d init = %d, want saturated", s.BellCounter, s.BellInit)
	}
}

func TestOpenDoor_Retrigger(t *testing.T) {
	s := settled(Params{LightTicks: 300})

	cmds := s.OpenDoor()
	if len(cmds) != 1 || cmds[0] != (RelayCmd{Board: BoardA, On: true, Mask: RelayDoor}) {
		t.Fatalf("OpenDoor() = %+v", cmds)
	}

	s, got, _ := run(s, 100)
	if len(got) != 0 {
		t.Fatalf("door closed early: %+v", got)
	}

	s.OpenDoor()
	s, got, _ = run(s, int(DoorTicks)-1)
	if len(got) != 0 || s.Door != 1 {
		t.Fatalf("after retrigger: cmds = %+v door = %d", got, s.Door)
	}

	s, got, _ = run(s, 1)
	if len(got) != 1 || got[0] != (RelayCmd{Board: BoardA, On: false, Mask: RelayDoor}) {
		t.Errorf("closing cmds = %+v", got)
	}
	if s.Door != 0 || s.Leds.Bell {
		t.Errorf("door = %d bell led = %v after closing", s.Door, s.Leds.Bell)
	}
}

func TestShowWrongInput_FreezesTimers(t *testing.T) {
	s := settled(Params{LightTicks: 300})
	s.OpenDoor()
	s.ShowWrongInput()

	s, out, _ := s.Next(idle, idle)
	if out.PortA != Led1|Led2|Led3 || out.PortB&(Led4|LedLight) != Led4|LedLight {
		t.Errorf("lockout ports = %#02x %#02x", out.PortA, out.PortB)
	}

	s, got, _ := run(s, int(WrongInputTicks)-1)
	if len(got) != 0 || s.Door != DoorTicks {
		t.Fatalf("door advanced during lockout: door = %d cmds = %+v", s.Door, got)
	}
	if s.WrongInput != 0 {
		t.Fatalf("lockout still running: %d", s.WrongInput)
	}

	s, out, _ = s.Next(idle, idle)
	if out.PortA != 0 || out.PortB != LedBell {
		t.Errorf("after lockout ports = %#02x %#02x, want 0 and bell LED", out.PortA, out.PortB)
	}
	if s.Door != DoorTicks-1 {
		t.Errorf("door = %d, want %d", s.Door, DoorTicks-1)
	}
}

func TestSwitchLights_Outside(t *testing.T) {
	s := settled(Params{LightTicks: 300})

	outcome, cmds := s.SwitchLights(false, true, false)
	if outcome.Kind != TurnedOn || cmds != nil {
		t.Fatalf("SwitchLights() = %v %+v", outcome, cmds)
	}
	if s.Light != 310 {
		t.Fatalf("Light = %d, want 310", s.Light)
	}

	var got []RelayCmd
	var offAt int
	for i := 1; i <= 400 && offAt == 0; i++ {
		var out Output
		var change StateChange
		s, out, change = s.Next(idle, idle)
		got = append(got, out.Relays...)
		if change.Kind == LightsOff {
			offAt = i
		}
	}

	if offAt != 310 {
		t.Errorf("lights off at tick %d, want 310", offAt)
	}
	want := []RelayCmd{
		{Board: BoardA, On: true, Mask: RelayLightOutside},
		{Board: BoardA, On: false, Mask: RelayLightOutside},
		{Board: BoardB, On: false, Mask: RelayLightInside},
	}
	if len(got) != len(want) {
		t.Fatalf("relay cmds = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("cmd %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if s.Leds.Light {
		t.Error("light LED still on")
	}
}

func TestSwitchLights_InsideOnly(t *testing.T) {
	s := settled(Params{LightTicks: 300})

	_, cmds := s.SwitchLights(true, false, false)
	if len(cmds) != 1 || cmds[0] != (RelayCmd{Board: BoardB, On: true, Mask: RelayLightInside}) {
		t.Fatalf("cmds = %+v", cmds)
	}

	_, got, changes := run(s, 400)
	for _, cmd := range got {
		if cmd.Mask == RelayLightOutside && cmd.Board == BoardA && cmd.On {
			t.Errorf("outside relay switched on by inside-only light")
		}
	}
	if len(changes) != 1 || changes[0].Kind != LightsOff {
		t.Errorf("changes = %v, want one LightsOff", changes)
	}
}

func TestSwitchLights_Phases(t *testing.T) {
	s := settled(Params{LightTicks: 300})

	if o, _ := s.SwitchLights(true, true, true); o.Kind != TurnedOn {
		t.Fatalf("first press = %v, want TurnedOn", o)
	}
	s, _, _ = run(s, 5)

	if o, _ := s.SwitchLights(true, true, true); o.Kind != MadePermanent {
		t.Fatalf("second press = %v, want MadePermanent", o)
	}
	s, _, changes := run(s, 2000)
	if len(changes) != 0 {
		t.Fatalf("permanent light changed: %v", changes)
	}

	o, cmds := s.SwitchLights(true, true, true)
	if o.Kind != TurnedOff || cmds != nil {
		t.Fatalf("third press = %v %+v, want TurnedOff without commands", o, cmds)
	}
	s, _, changes = run(s, int(lightCancelDelay))
	if len(changes) != 1 || changes[0].Kind != LightsOff {
		t.Errorf("after cancel: changes = %v", changes)
	}
	if s.Light != 0 || s.LightPermanent {
		t.Errorf("light = %d permanent = %v", s.Light, s.LightPermanent)
	}
}

func TestSwitchLights_Extended(t *testing.T) {
	s := settled(Params{LightTicks: 300})
	s.SwitchLights(false, true, false)
	s, _, _ = run(s, 250)

	o, _ := s.SwitchLights(true, true, true)
	if o.Kind != Extended {
		t.Fatalf("late permanent request = %v, want Extended", o)
	}
	if s.Light != 310 {
		t.Errorf("Light = %d, want 310", s.Light)
	}
}

func TestMarkFailure_DiagLeds(t *testing.T) {
	s := settled(Params{LightTicks: 300})
	s.MarkFailure(BoardB)

	s, out, _ := s.Next(idle, idle)
	if out.PortA != Led1|Led3 {
		t.Errorf("diag ports A = %#02x, want LED 1 and 3", out.PortA)
	}

	for i := 0; i < int(diagTicks); i++ {
		s, out, _ = s.Next(idle, idle)
	}
	if out.PortA != 0 {
		t.Errorf("diag LEDs still lit: %#02x", out.PortA)
	}
}

func TestLightOutcome_String(t *testing.T) {
	tests := []struct {
		o    LightOutcome
		want string
	}{
		{LightOutcome{Kind: TurnedOff}, "Light not permanent anymore"},
		{LightOutcome{Kind: MadePermanent, Inside: true, Outside: true}, "Light inside and outside now permanently on"},
		{LightOutcome{Kind: Extended, Outside: true}, "Light outside time extended"},
		{LightOutcome{Kind: TurnedOn, Inside: true}, "Light inside switched on"},
	}
	for _, tt := range tests {
		if got := tt.o.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
