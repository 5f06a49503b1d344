package notifier

import "testing"

func TestDuplicateFlappingStartIsSuppressed(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	n := f.notifier(t, nil)

	first := mustNotify(t, n, ReasonFlappingStart, OptionNone)
	if first.Suppressed {
		t.Fatalf("expected first flapping start to be sent")
	}
	second := mustNotify(t, n, ReasonFlappingStart, OptionNone)
	if !second.Suppressed {
		t.Fatalf("expected duplicate flapping start to be suppressed")
	}
	if got := f.transport.count(); got != 1 {
		t.Fatalf("expected one delivery, got %d", got)
	}

	if stop := mustNotify(t, n, ReasonFlappingStop, OptionNone); stop.Suppressed {
		t.Fatalf("expected flapping stop after start to be sent")
	}
	if again := mustNotify(t, n, ReasonFlappingStart, OptionNone); again.Suppressed {
		t.Fatalf("expected flapping start after stop to be sent")
	}
}

func TestFlappingRequiresReasonBitAndNoDowntime(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	n := f.notifier(t, func(def *Definition) {
		def.NotifyOn = NotifyOnStates | NotifyOnFlappingStart
	})
	if result := mustNotify(t, n, ReasonFlappingStop, OptionNone); !result.Suppressed {
		t.Fatalf("expected flapping stop without notify_on bit to be suppressed")
	}

	n.SetDowntimeDepth(1)
	if result := mustNotify(t, n, ReasonFlappingStart, OptionNone); !result.Suppressed {
		t.Fatalf("expected flapping start during downtime to be suppressed")
	}
	if result := mustNotify(t, n, ReasonFlappingStart, OptionForced); result.Suppressed {
		t.Fatalf("expected forced flapping start to bypass downtime")
	}
}

func TestRecoveryRequiresPriorProblem(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	n := f.notifier(t, nil)
	f.hardRecovery(n)

	result := mustNotify(t, n, ReasonRecovery, OptionNone)
	if !result.Suppressed {
		t.Fatalf("expected recovery without prior problem to be suppressed")
	}
	if f.transport.count() != 0 {
		t.Fatalf("expected no delivery")
	}
}

func TestRecoverySoftFailureKeepsPendingProblem(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	n := f.notifier(t, nil)
	f.hardProblem(n, HostDown)
	mustNotify(t, n, ReasonNormal, OptionNone)

	f.at(30)
	n.SetCurrentState(HostUp)
	n.SetStateType(StateHard)
	n.SetFlapping(true)
	if result := mustNotify(t, n, ReasonRecovery, OptionNone); !result.Suppressed {
		t.Fatalf("expected recovery while flapping to be delayed")
	}
	if n.NotificationNumber() != 1 || n.Notification(CategoryNormal) == nil {
		t.Fatalf("expected pending problem to survive soft recovery failure, number=%d", n.NotificationNumber())
	}

	n.SetFlapping(false)
	if result := mustNotify(t, n, ReasonRecovery, OptionNone); result.Suppressed {
		t.Fatalf("expected recovery to be sent after flapping ends")
	}
}

func TestRecoveryHardFailureResetsBookkeeping(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	n := f.notifier(t, func(def *Definition) {
		def.NotifyOn = NotifyOnDown | NotifyOnUnreachable
	})
	f.hardProblem(n, HostDown)
	mustNotify(t, n, ReasonNormal, OptionNone)
	if n.NotificationNumber() != 1 {
		t.Fatalf("expected number 1 after problem, got %d", n.NotificationNumber())
	}

	f.at(60)
	f.hardRecovery(n)
	if result := mustNotify(t, n, ReasonRecovery, OptionNone); !result.Suppressed {
		t.Fatalf("expected recovery without recovery bit to be suppressed")
	}
	if n.NotificationNumber() != 0 {
		t.Fatalf("expected number reset, got %d", n.NotificationNumber())
	}
	if n.Notification(CategoryNormal) != nil {
		t.Fatalf("expected normal slot to be cleared")
	}
}

func TestRecoveryHonorsDelay(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	n := f.notifier(t, func(def *Definition) {
		def.RecoveryNotificationDelay = 2
	})
	f.hardProblem(n, HostDown)
	mustNotify(t, n, ReasonNormal, OptionNone)

	f.at(100)
	f.hardRecovery(n)
	f.at(219)
	if result := mustNotify(t, n, ReasonRecovery, OptionNone); !result.Suppressed {
		t.Fatalf("expected recovery before delay to be suppressed")
	}
	f.at(220)
	if result := mustNotify(t, n, ReasonRecovery, OptionNone); result.Suppressed {
		t.Fatalf("expected recovery after delay to be sent")
	}
}

func TestRecoveryIgnoresPeriodWhenSendAnyways(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	n := f.notifier(t, nil)
	f.hardProblem(n, HostDown)
	mustNotify(t, n, ReasonNormal, OptionNone)

	f.lookup.periods["24x7"].(*fakePeriod).allow = false
	f.at(60)
	f.hardRecovery(n)
	if result := mustNotify(t, n, ReasonRecovery, OptionNone); !result.Suppressed {
		t.Fatalf("expected recovery outside period to be delayed")
	}
	f.env.SendRecoveryAnyways = true
	if result := mustNotify(t, n, ReasonRecovery, OptionNone); result.Suppressed {
		t.Fatalf("expected recovery outside period to be sent with send_recovery_anyways")
	}
}

func TestForcedNormalBypassesPeriodButNotGlobalSwitch(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	n := f.notifier(t, func(def *Definition) {
		def.NotificationPeriod = "never"
	})
	f.hardProblem(n, HostDown)

	if result := mustNotify(t, n, ReasonNormal, OptionNone); !result.Suppressed {
		t.Fatalf("expected problem outside period to be suppressed")
	}
	if result := mustNotify(t, n, ReasonNormal, OptionForced); result.Suppressed {
		t.Fatalf("expected forced problem outside period to be sent")
	}

	f.env.SetNotificationsEnabled(false)
	before := f.env.IDs.Peek()
	if result := mustNotify(t, n, ReasonNormal, OptionForced); !result.Suppressed {
		t.Fatalf("expected forced problem with global notifications disabled to be suppressed")
	}
	if f.env.IDs.Peek() != before {
		t.Fatalf("expected suppressed notification not to consume an id")
	}
}

func TestForcedNonNormalBypassesGlobalSwitch(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	n := f.notifier(t, nil)
	f.env.SetNotificationsEnabled(false)

	for _, reason := range []Reason{ReasonCustom, ReasonDowntimeStart, ReasonFlappingStart} {
		if result := mustNotify(t, n, reason, OptionNone); !result.Suppressed {
			t.Fatalf("expected %s to be suppressed with notifications disabled", reason)
		}
		if result := mustNotify(t, n, reason, OptionForced); result.Suppressed {
			t.Fatalf("expected forced %s to be sent", reason)
		}
	}
}

func TestNormalIntervalGate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	n := f.notifier(t, func(def *Definition) {
		def.NotificationInterval = 3
	})
	f.hardProblem(n, HostDown)
	mustNotify(t, n, ReasonNormal, OptionNone)

	f.at(3*60 - 60)
	if result := mustNotify(t, n, ReasonNormal, OptionNone); !result.Suppressed {
		t.Fatalf("expected repeat before interval to be suppressed")
	}
	f.at(3 * 60)
	result := mustNotify(t, n, ReasonNormal, OptionNone)
	if result.Suppressed {
		t.Fatalf("expected repeat at interval to be sent")
	}
	if result.Number != 2 {
		t.Fatalf("expected number 2, got %d", result.Number)
	}
}

func TestNormalIntervalZeroSendsOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	n := f.notifier(t, func(def *Definition) {
		def.NotificationInterval = 0
	})
	f.hardProblem(n, HostDown)
	mustNotify(t, n, ReasonNormal, OptionNone)
	if !n.NoMoreNotifications() {
		t.Fatalf("expected no more notifications after send with interval 0")
	}

	f.at(3600)
	if result := mustNotify(t, n, ReasonNormal, OptionNone); !result.Suppressed {
		t.Fatalf("expected second problem with interval 0 to be suppressed")
	}

	f.hardRecovery(n)
	if result := mustNotify(t, n, ReasonRecovery, OptionNone); result.Suppressed {
		t.Fatalf("expected recovery to follow single problem notification")
	}
	if f.transport.count() != 2 {
		t.Fatalf("expected problem and recovery deliveries, got %d", f.transport.count())
	}
}

func TestNormalHardStateChangeLiftsIntervalGate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	n := f.notifier(t, func(def *Definition) {
		def.Kind = KindService
		def.Description = "http"
		def.NotificationInterval = 30
	})
	f.hardProblem(n, ServiceWarning)
	mustNotify(t, n, ReasonNormal, OptionNone)

	f.at(60)
	f.hardProblem(n, ServiceCritical)
	if result := mustNotify(t, n, ReasonNormal, OptionNone); result.Suppressed {
		t.Fatalf("expected hard state change to notify before interval")
	}
}

func TestNormalSuppressionConditions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		setup func(f *fixture, n *Notifier)
	}{
		{name: "notifier disabled", setup: func(_ *fixture, n *Notifier) { n.SetNotificationsEnabled(false) }},
		{name: "downtime", setup: func(_ *fixture, n *Notifier) { n.SetDowntimeDepth(1) }},
		{name: "flapping", setup: func(_ *fixture, n *Notifier) { n.SetFlapping(true) }},
		{name: "soft state", setup: func(_ *fixture, n *Notifier) { n.SetStateType(StateSoft) }},
		{name: "acknowledged", setup: func(_ *fixture, n *Notifier) { n.SetAcknowledgement(AckNormal) }},
		{name: "ok state", setup: func(_ *fixture, n *Notifier) { n.SetCurrentState(HostUp) }},
		{name: "dependency", setup: func(f *fixture, _ *Notifier) { f.env.Dependencies = denyDependencies{} }},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			n := f.notifier(t, nil)
			f.hardProblem(n, HostDown)
			tc.setup(f, n)
			if result := mustNotify(t, n, ReasonNormal, OptionNone); !result.Suppressed {
				t.Fatalf("expected problem to be suppressed")
			}
			if n.NotificationNumber() != 0 {
				t.Fatalf("expected number to stay 0, got %d", n.NotificationNumber())
			}
		})
	}
}

func TestNormalStateMustBeInNotifyOn(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	n := f.notifier(t, func(def *Definition) {
		def.NotifyOn = NotifyOnUnreachable | NotifyOnUp
	})
	f.hardProblem(n, HostDown)
	if result := mustNotify(t, n, ReasonNormal, OptionNone); !result.Suppressed {
		t.Fatalf("expected DOWN without notify_on bit to be suppressed")
	}
	f.hardProblem(n, HostUnreachable)
	if result := mustNotify(t, n, ReasonNormal, OptionNone); result.Suppressed {
		t.Fatalf("expected UNREACHABLE with notify_on bit to be sent")
	}
}

func TestVolatileNotifierSkipsStateChecks(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	n := f.notifier(t, func(def *Definition) {
		def.Volatile = true
		def.NotificationInterval = 0
	})
	f.hardProblem(n, HostDown)
	n.SetStateType(StateSoft)
	n.SetAcknowledgement(AckNormal)

	for i := 0; i < 3; i++ {
		if result := mustNotify(t, n, ReasonNormal, OptionNone); result.Suppressed {
			t.Fatalf("expected volatile problem %d to be sent", i+1)
		}
	}
	if n.NoMoreNotifications() {
		t.Fatalf("expected volatile notifier never to stop notifying")
	}
}

func TestFirstNotificationDelay(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	n := f.notifier(t, func(def *Definition) {
		def.FirstNotificationDelay = 5
	})
	f.hardProblem(n, HostDown)

	f.at(5*60 - 1)
	if result := mustNotify(t, n, ReasonNormal, OptionNone); !result.Suppressed {
		t.Fatalf("expected problem before first delay to be suppressed")
	}
	f.at(5 * 60)
	if result := mustNotify(t, n, ReasonNormal, OptionNone); result.Suppressed {
		t.Fatalf("expected problem after first delay to be sent")
	}
}

func TestAcknowledgementRequiresProblemState(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	n := f.notifier(t, nil)
	if result := mustNotify(t, n, ReasonAcknowledgement, OptionNone); !result.Suppressed {
		t.Fatalf("expected acknowledgement on UP host to be suppressed")
	}
	f.hardProblem(n, HostDown)
	if result := mustNotify(t, n, ReasonAcknowledgement, OptionNone); result.Suppressed {
		t.Fatalf("expected acknowledgement on DOWN host to be sent")
	}
}

func TestDowntimeRequiresZeroDepth(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	n := f.notifier(t, nil)
	if result := mustNotify(t, n, ReasonDowntimeStart, OptionNone); result.Suppressed {
		t.Fatalf("expected downtime start at depth 0 to be sent")
	}
	n.SetDowntimeDepth(1)
	if result := mustNotify(t, n, ReasonDowntimeStart, OptionNone); !result.Suppressed {
		t.Fatalf("expected nested downtime start to be suppressed")
	}

	m := f.notifier(t, func(def *Definition) {
		def.HostName = "db01"
		def.NotifyOn = NotifyOnStates
	})
	if result := mustNotify(t, m, ReasonDowntimeStart, OptionNone); !result.Suppressed {
		t.Fatalf("expected downtime without notify_on bit to be suppressed")
	}
}

func TestCustomSuppressedDuringDowntime(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	n := f.notifier(t, nil)
	n.SetDowntimeDepth(2)
	if result := mustNotify(t, n, ReasonCustom, OptionNone); !result.Suppressed {
		t.Fatalf("expected custom during downtime to be suppressed")
	}
	if result := mustNotify(t, n, ReasonCustom, OptionForced); result.Suppressed {
		t.Fatalf("expected forced custom during downtime to be sent")
	}
}
