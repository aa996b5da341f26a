package service

import (
	"errors"

	"github.com/yuqie6/ChoreQuest/internal/repository"
)

var (
	// ErrUnknownCategory 调用方传入了未配置的任务类别
	ErrUnknownCategory = errors.New("未知的任务类别")
	// ErrUnknownSkillTree 调用方传入了未配置的技能树
	ErrUnknownSkillTree = errors.New("未知的技能树")
	// ErrInvalidAmount 金额/经验值非法
	ErrInvalidAmount = errors.New("非法数值")
	// ErrInvalidUser user_id 为空
	ErrInvalidUser = errors.New("user_id 不能为空")
	// ErrInvalidTask task_id 为空
	ErrInvalidTask = errors.New("task_id 不能为空")
)

// IsRetryable 判断错误是否为可重试的存储冲突。
// 可重试错误意味着整个工作单元已回滚，重跑即可。
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, repository.ErrConflict) || repository.IsBusy(err)
}

// IsInvalidInput 判断是否为调用方输入错误
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrUnknownCategory) ||
		errors.Is(err, ErrUnknownSkillTree) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidUser) ||
		errors.Is(err, ErrInvalidTask)
}
