package services

import (
	"context"
	"errors"

	"classroom-economy/models"
	"classroom-economy/store"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type JobService struct {
	core *Core
}

func NewJobService(core *Core) *JobService {
	return &JobService{core: core}
}

// NewJob is the input to CreateJob.
type NewJob struct {
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	SubjectID     string         `json:"subject_id"`
	Reward        Reward         `json:"reward"`
	MaxRecipients int            `json:"max_recipients"`
	TeamEligible  bool           `json:"team_eligible"`
	Metadata      datatypes.JSON `json:"metadata,omitempty"`
}

// CloseResult is what closing a job paid out.
type CloseResult struct {
	Job       *models.Job `json:"job"`
	Payouts   []Payout    `json:"payouts"`
	Remainder Remainder   `json:"remainder"`
}

type jobCompletedPayload struct {
	JobID string `json:"job_id"`
	XP    int64  `json:"xp"`
	Money int64  `json:"money"`
}

func (s *JobService) CreateJob(ctx context.Context, teacherID string, in NewJob) (*models.Job, error) {
	if in.Title == "" {
		return nil, failf("job", "Create", ErrInvalidInput, "title is required")
	}
	if err := in.Reward.validate("job"); err != nil {
		return nil, err
	}
	if in.MaxRecipients <= 0 {
		in.MaxRecipients = 1
	}

	job := &models.Job{
		ID:                uuid.NewString(),
		Title:             in.Title,
		Description:       in.Description,
		TeacherID:         teacherID,
		SubjectID:         in.SubjectID,
		Status:            models.JobOpen,
		XPReward:          in.Reward.XP,
		MoneyReward:       in.Reward.Money,
		SkillPointsReward: in.Reward.SkillPoints,
		ReputationReward:  in.Reward.Reputation,
		MaxRecipients:     in.MaxRecipients,
		TeamEligible:      in.TeamEligible,
		Metadata:          in.Metadata,
	}
	err := s.core.run(ctx, func(u *unit) error {
		teacher, err := s.core.requireUser(u.tx, teacherID)
		if err != nil {
			return err
		}
		if !teacher.Role.CanIssue() {
			return failf("job", "Create", ErrPermissionDenied, "role %q cannot post jobs", teacher.Role)
		}
		return u.tx.CreateJob(job)
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (s *JobService) lockJob(tx store.Tx, jobID string) (*models.Job, error) {
	job, err := tx.LockJob(jobID)
	if isNotFound(err) {
		return nil, ErrJobNotFound
	}
	return job, err
}

// ApplyJob registers a student's application. Applying twice fails.
func (s *JobService) ApplyJob(ctx context.Context, jobID, userID string) (*models.JobAssignment, error) {
	var out *models.JobAssignment
	err := s.core.run(ctx, func(u *unit) error {
		if _, err := s.core.requireUser(u.tx, userID); err != nil {
			return err
		}
		job, err := s.lockJob(u.tx, jobID)
		if err != nil {
			return err
		}
		if !job.Status.Payable() {
			return failf("job", "Apply", ErrInvalidState, "job is %s", job.Status)
		}
		if job.TeacherID == userID {
			return failf("job", "Apply", ErrPermissionDenied, "cannot apply to your own job")
		}
		if _, err := u.tx.GetAssignment(jobID, userID); err == nil {
			return ErrAlreadyApplied
		} else if !isNotFound(err) {
			return err
		}
		out = &models.JobAssignment{
			ID:        uuid.NewString(),
			JobID:     jobID,
			UserID:    userID,
			Status:    models.AssignmentApplied,
			AppliedAt: u.now,
		}
		err = u.tx.SaveAssignment(out)
		if errors.Is(err, store.ErrDuplicate) {
			return ErrAlreadyApplied
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *JobService) ownedJob(u *unit, jobID, teacherID string) (*models.Job, error) {
	job, err := s.lockJob(u.tx, jobID)
	if err != nil {
		return nil, err
	}
	if job.TeacherID != teacherID {
		return nil, ErrNotJobOwner
	}
	return job, nil
}

func approvedCount(as []models.JobAssignment) int {
	n := 0
	for _, a := range as {
		if a.Status == models.AssignmentApproved {
			n++
		}
	}
	return n
}

// ApproveAssignment accepts an applicant. The first approval moves the job to IN_PROGRESS.
func (s *JobService) ApproveAssignment(ctx context.Context, jobID, teacherID, userID string) (*models.JobAssignment, error) {
	var out *models.JobAssignment
	err := s.core.run(ctx, func(u *unit) error {
		job, err := s.ownedJob(u, jobID, teacherID)
		if err != nil {
			return err
		}
		if !job.Status.Payable() {
			return ErrInvalidJobStatus
		}
		a, err := u.tx.GetAssignment(jobID, userID)
		if isNotFound(err) {
			return failf("job", "Approve", ErrNotFound, "user %s has not applied", userID)
		}
		if err != nil {
			return err
		}
		if a.Status != models.AssignmentApplied {
			return failf("job", "Approve", ErrInvalidState, "assignment is %s", a.Status)
		}
		all, err := u.tx.ListAssignments(jobID)
		if err != nil {
			return err
		}
		if approvedCount(all) >= job.MaxRecipients {
			return ErrAssignmentFull
		}
		a.Status = models.AssignmentApproved
		a.ApprovedAt = ptrTime(u.now)
		if err := u.tx.SaveAssignment(a); err != nil {
			return err
		}
		if job.Status == models.JobOpen {
			job.Status = models.JobInProgress
			if err := u.tx.SaveJob(job); err != nil {
				return err
			}
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *JobService) RejectAssignment(ctx context.Context, jobID, teacherID, userID string) (*models.JobAssignment, error) {
	var out *models.JobAssignment
	err := s.core.run(ctx, func(u *unit) error {
		job, err := s.ownedJob(u, jobID, teacherID)
		if err != nil {
			return err
		}
		if !job.Status.Payable() {
			return ErrInvalidJobStatus
		}
		a, err := u.tx.GetAssignment(jobID, userID)
		if isNotFound(err) {
			return failf("job", "Reject", ErrNotFound, "user %s has not applied", userID)
		}
		if err != nil {
			return err
		}
		if a.Status != models.AssignmentApplied && a.Status != models.AssignmentApproved {
			return failf("job", "Reject", ErrInvalidState, "assignment is %s", a.Status)
		}
		a.Status = models.AssignmentRejected
		out = a
		return u.tx.SaveAssignment(a)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CloseJob pays the pool to every approved recipient exactly once. The job row lock
// serializes concurrent closes; the loser sees COMPLETED and fails.
func (s *JobService) CloseJob(ctx context.Context, jobID, teacherID string) (*CloseResult, error) {
	var out *CloseResult
	err := s.core.run(ctx, func(u *unit) error {
		job, err := s.ownedJob(u, jobID, teacherID)
		if err != nil {
			return err
		}
		if !job.Status.Payable() {
			return ErrInvalidJobStatus
		}
		owner, err := s.core.requireUser(u.tx, teacherID)
		if err != nil {
			return err
		}

		all, err := u.tx.ListAssignments(jobID)
		if err != nil {
			return err
		}
		var approved []models.JobAssignment
		var recipients []string
		for _, a := range all {
			if a.Status == models.AssignmentApproved {
				approved = append(approved, a)
				recipients = append(recipients, a.UserID)
			}
		}
		if len(recipients) > job.MaxRecipients {
			return ErrAssignmentFull
		}

		payouts, rem, err := s.core.Payouts.Distribute(u, Distribution{
			Source:       source{Type: models.SourceJob, ID: job.ID, IssuedBy: teacherID, Reason: job.Title},
			Pool:         Reward{XP: job.XPReward, Money: job.MoneyReward, SkillPoints: job.SkillPointsReward, Reputation: job.ReputationReward},
			Recipients:   recipients,
			Issuer:       owner,
			SubjectID:    job.SubjectID,
			Leadership:   true,
			TeamEligible: job.TeamEligible,
		})
		if err != nil {
			return err
		}

		for i := range approved {
			approved[i].Status = models.AssignmentCompleted
			approved[i].CompletedAt = ptrTime(u.now)
			if err := u.tx.SaveAssignment(&approved[i]); err != nil {
				return err
			}
		}
		job.Status = models.JobCompleted
		job.ClosedAt = ptrTime(u.now)
		if err := u.tx.SaveJob(job); err != nil {
			return err
		}
		for _, p := range payouts {
			if err := u.emit(models.OutboxJobCompleted, p.UserID, jobCompletedPayload{JobID: job.ID, XP: p.XP, Money: p.Money}); err != nil {
				return err
			}
		}
		out = &CloseResult{Job: job, Payouts: payouts, Remainder: rem}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CancelJob withdraws an unpaid job. Nothing is issued.
func (s *JobService) CancelJob(ctx context.Context, jobID, teacherID string) (*models.Job, error) {
	var out *models.Job
	err := s.core.run(ctx, func(u *unit) error {
		job, err := s.ownedJob(u, jobID, teacherID)
		if err != nil {
			return err
		}
		if !job.Status.Payable() {
			return ErrInvalidJobStatus
		}
		job.Status = models.JobCancelled
		job.ClosedAt = ptrTime(u.now)
		out = job
		return u.tx.SaveJob(job)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
