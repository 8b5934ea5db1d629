package config

type WorkerKeyStruct struct {
	PersistAnswersQueue     string
	LeaderboardRefreshQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistAnswersQueue:     "persist_answers_queue",
	LeaderboardRefreshQueue: "leaderboard_refresh_queue",
}
