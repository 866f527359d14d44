package bot

import "testing"

func TestParseClock(t *testing.T) {
	cases := []struct {
		in      string
		hour    int
		minute  int
		wantErr bool
	}{
		{"09:30", 9, 30, false},
		{" 18:05 ", 18, 5, false},
		{"0:0", 0, 0, false},
		{"24:00", 0, 0, true},
		{"12:60", 0, 0, true},
		{"12", 0, 0, true},
		{"noon", 0, 0, true},
		{"", 0, 0, true},
	}
	for _, tc := range cases {
		h, m, err := parseClock(tc.in)
		if tc.wantErr != (err != nil) {
			t.Errorf("%q: err = %v", tc.in, err)
			continue
		}
		if err == nil && (h != tc.hour || m != tc.minute) {
			t.Errorf("%q: got %d:%d", tc.in, h, m)
		}
	}
}

func TestRegistryCommands(t *testing.T) {
	app := &App{}
	reg := app.Registry()

	for _, name := range []string{"/start", "/help", "/coupons", "/disconnect", "/remindertime", "/summaryday", "/dryrun"} {
		if _, _, ok := reg.LookupCommand(name); !ok {
			t.Errorf("command %s not registered", name)
		}
	}
	for _, name := range []string{"/remindertime", "/summaryday", "/dryrun"} {
		if _, cmd, _ := reg.LookupCommand(name); !cmd.AdminOnly {
			t.Errorf("command %s should be admin only", name)
		}
	}
	// Hidden admin commands stay out of the Telegram command menu.
	for _, cmd := range reg.ListCommands(true) {
		switch cmd.Text {
		case "/remindertime", "/summaryday", "/dryrun":
			t.Errorf("command %s should be hidden", cmd.Text)
		}
	}
	if reg.TextFallback() == nil {
		t.Fatal("text fallback not set")
	}
}
