package domain

const (
	EventNameExamSubmitted      = "exam.submitted"
	EventNameLeaderboardUpdated = "leaderboard.updated"
)

type EventExamSubmitted struct {
	Result  ExamResult
	Trigger SubmitTrigger
}

func (EventExamSubmitted) Name() string { return EventNameExamSubmitted }

type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }
